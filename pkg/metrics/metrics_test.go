package metrics

import (
	"strings"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMetricsManagerCreation(t *testing.T) {
	Convey("Given metrics manager creation", t, func() {
		Convey("When creating with a private registry", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(WithPrometheusRegistry(registry))

			Convey("Then collectors are registered under the default namespace", func() {
				So(manager, ShouldNotBeNil)
				manager.featuresTotal.Set(3)
				families, err := registry.Gather()
				So(err, ShouldBeNil)

				found := false
				for _, f := range families {
					if f.GetName() == "featreg_registry_features" {
						found = true
					}
				}
				So(found, ShouldBeTrue)
			})
		})

		Convey("When creating with custom options", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(
				WithNamespace("test"),
				WithSubsystem("unit"),
				WithHistogramBuckets([]float64{0.1, 0.5, 1.0}),
				WithConstLabels(map[string]string{"env": "test"}),
				WithPrometheusRegistry(registry),
			)

			Convey("Then names and labels reflect the options", func() {
				manager.rateLimitRejects.Inc()
				expected := `
# HELP test_unit_rate_limit_rejects_total Requests rejected by the rate limiter
# TYPE test_unit_rate_limit_rejects_total counter
test_unit_rate_limit_rejects_total{env="test"} 1
`
				err := testutil.GatherAndCompare(registry, strings.NewReader(expected), "test_unit_rate_limit_rejects_total")
				So(err, ShouldBeNil)
			})
		})

		Convey("When empty option values are passed", func() {
			manager := NewManager(
				WithNamespace(""),
				WithSubsystem(""),
				WithHistogramBuckets(nil),
				WithPrometheusRegistry(nil),
				WithPrometheusRegistry(prometheus.NewRegistry()),
			)

			Convey("Then defaults are kept", func() {
				So(manager.namespace, ShouldEqual, "featreg")
				So(manager.subsystem, ShouldEqual, "registry")
				So(len(manager.histogramBuckets), ShouldBeGreaterThan, 0)
			})
		})
	})
}

func TestMetricsRecording(t *testing.T) {
	Convey("Given the global metrics manager", t, func() {
		Convey("When recording registry operations", func() {
			before := testutil.ToFloat64(current().featureOps.WithLabelValues("register", "ok"))
			RecordFeatureOperation("register", "ok")
			RecordFeatureOperation("register", "ok")
			RecordFeatureOperationLatency("register", 0.2)

			Convey("Then the counter moves by the number of calls", func() {
				after := testutil.ToFloat64(current().featureOps.WithLabelValues("register", "ok"))
				So(after-before, ShouldEqual, 2)
			})
		})

		Convey("When setting gauges", func() {
			UpdateFeaturesTotal(7)
			UpdateFeaturesByStatus("degraded", 2)
			UpdateStoreShardCount(4)
			UpdateStoreShardRecords("shard_1", 3)
			UpdateQueueSize(5)
			UpdateQueueCapacity(10)
			UpdateQueueUtilization(0.5)
			UpdateWorkerCount(2)
			UpdateChangeLogSize(9)

			Convey("Then the last value wins", func() {
				So(testutil.ToFloat64(current().featuresTotal), ShouldEqual, 7)
				So(testutil.ToFloat64(current().featuresByStatus.WithLabelValues("degraded")), ShouldEqual, 2)
				So(testutil.ToFloat64(current().storeShardCount), ShouldEqual, 4)
				So(testutil.ToFloat64(current().storeShardRecords.WithLabelValues("shard_1")), ShouldEqual, 3)
				So(testutil.ToFloat64(current().queueUtilization), ShouldEqual, 0.5)
				So(testutil.ToFloat64(current().changeLogSize), ShouldEqual, 9)
			})
		})

		Convey("When recording the change feed", func() {
			published := testutil.ToFloat64(current().changesPublished)
			dropped := testutil.ToFloat64(current().changesDropped)
			processed := testutil.ToFloat64(current().changesProcessed)
			RecordChangePublished()
			RecordChangeDropped()
			RecordChangeProcessed()
			RecordWorkerProcessingLatency(1.5)

			Convey("Then each counter moves once", func() {
				So(testutil.ToFloat64(current().changesPublished)-published, ShouldEqual, 1)
				So(testutil.ToFloat64(current().changesDropped)-dropped, ShouldEqual, 1)
				So(testutil.ToFloat64(current().changesProcessed)-processed, ShouldEqual, 1)
			})
		})

		Convey("When recording HTTP and error metrics", func() {
			So(func() {
				RecordHTTPRequest("feature_data", "GET", "404")
				RecordHTTPRequestDuration("feature_data", "GET", "404", 0.3)
				RecordRateLimitReject()
				RecordPanicRecovery()
				RecordErrorByComponent("registry", "not_found")
				RecordErrorByType("not_found", "medium")
				RecordErrorByEndpoint("feature_data", "GET", "not_found")
				RecordErrorLatency("http", "not_found", 0.3)
				UpdateSystemMemoryUsage(1 << 20)
				UpdateSystemGoroutineCount(12)
				RecordSystemGCPauseTime(0.4)
			}, ShouldNotPanic)

			Convey("Then the request counter is visible in the custom registry", func() {
				count, err := testutil.GatherAndCount(GetRegistry(), "featreg_registry_http_requests_total")
				So(err, ShouldBeNil)
				So(count, ShouldBeGreaterThan, 0)
			})
		})
	})
}

func TestMetricsConcurrency(t *testing.T) {
	Convey("Given concurrent recorders", t, func() {
		before := testutil.ToFloat64(current().featureOps.WithLabelValues("delete", "ok"))

		var wg sync.WaitGroup
		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for j := 0; j < 100; j++ {
					RecordFeatureOperation("delete", "ok")
				}
			}()
		}
		wg.Wait()

		Convey("Then no increments are lost", func() {
			after := testutil.ToFloat64(current().featureOps.WithLabelValues("delete", "ok"))
			So(after-before, ShouldEqual, 1000)
		})
	})
}

func TestConfigure(t *testing.T) {
	Convey("Given the package metrics reconfigured with naming options", t, func() {
		Configure(
			WithNamespace("featctl"),
			WithSubsystem("api"),
			WithHistogramBuckets([]float64{1, 2}),
			WithConstLabels(map[string]string{"env": "ci"}),
		)
		Reset(func() { Configure() })

		RecordFeatureOperation("register", "ok")
		RecordFeatureOperationLatency("register", 1.5)

		Convey("Then recorders write to the new registry under the new names", func() {
			count, err := testutil.GatherAndCount(GetRegistry(), "featctl_api_feature_operations_total")
			So(err, ShouldBeNil)
			So(count, ShouldEqual, 1)

			expected := `
# HELP featctl_api_feature_operation_latency_milliseconds Registry operation latency in milliseconds
# TYPE featctl_api_feature_operation_latency_milliseconds histogram
featctl_api_feature_operation_latency_milliseconds_bucket{env="ci",operation="register",le="1"} 0
featctl_api_feature_operation_latency_milliseconds_bucket{env="ci",operation="register",le="2"} 1
featctl_api_feature_operation_latency_milliseconds_bucket{env="ci",operation="register",le="+Inf"} 1
featctl_api_feature_operation_latency_milliseconds_sum{env="ci",operation="register"} 1.5
featctl_api_feature_operation_latency_milliseconds_count{env="ci",operation="register"} 1
`
			So(testutil.GatherAndCompare(GetRegistry(), strings.NewReader(expected),
				"featctl_api_feature_operation_latency_milliseconds"), ShouldBeNil)
		})

		Convey("Then resetting restores the default names", func() {
			Configure()
			RecordFeatureOperation("get", "ok")
			count, err := testutil.GatherAndCount(GetRegistry(), "featreg_registry_feature_operations_total")
			So(err, ShouldBeNil)
			So(count, ShouldEqual, 1)
		})
	})
}
