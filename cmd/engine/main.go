package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/pflag"
	"k8s.io/apimachinery/pkg/api/resource"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/log/zap"
	ctrlmetrics "sigs.k8s.io/controller-runtime/pkg/metrics"

	"github.com/controlplane/simkube/action"
	"github.com/controlplane/simkube/config"
	"github.com/controlplane/simkube/controllers"
	"github.com/controlplane/simkube/engine"
	"github.com/controlplane/simkube/history"
	"github.com/controlplane/simkube/httpapi"
	"github.com/controlplane/simkube/pkg/metrics"
	"github.com/controlplane/simkube/pkg/signals"
	"github.com/controlplane/simkube/resources"
	"github.com/controlplane/simkube/store"
)

var setupLog = ctrl.Log.WithName("setup")

func main() {
	var metricsAddr string
	var apiAddr string
	var consistency string
	var tickInterval time.Duration
	var nodeCount int
	var nodeCPU string
	var nodeMemory string
	var fixturePath string

	defaultTickInterval := 100 * time.Millisecond
	if envInterval, err := config.ResolveOsEnvDuration("SIMKUBE_ENGINE_TICK_INTERVAL"); err != nil {
		setupLog.Error(err, "invalid SIMKUBE_ENGINE_TICK_INTERVAL")
		os.Exit(1)
	} else if envInterval != nil {
		defaultTickInterval = *envInterval
	}

	defaultNodeCount, err := config.ResolveOsEnvInt("SIMKUBE_ENGINE_NODE_COUNT", 3)
	if err != nil {
		setupLog.Error(err, "invalid SIMKUBE_ENGINE_NODE_COUNT")
		os.Exit(1)
	}

	pflag.StringVar(&metricsAddr, "metrics-bind-address", ":8080", "The address the /metrics endpoint binds to.")
	pflag.StringVar(&apiAddr, "api-bind-address", ":8081", "The address the Kubernetes-compatible HTTP API binds to.")
	pflag.StringVar(&consistency, "consistency", "linearizable",
		"History variant to run: linearizable, monotonic-session, resettable-session, optimistic-linear, or causal.")
	pflag.DurationVar(&tickInterval, "tick-interval", defaultTickInterval,
		"Delay between driver ticks. Defaults to SIMKUBE_ENGINE_TICK_INTERVAL if set.")
	pflag.IntVar(&nodeCount, "nodes", defaultNodeCount,
		"Number of Node controllers to join to the fleet at startup. Defaults to SIMKUBE_ENGINE_NODE_COUNT if set.")
	pflag.StringVar(&nodeCPU, "node-cpu", "4", "CPU capacity each joined node reports.")
	pflag.StringVar(&nodeMemory, "node-memory", "8Gi", "Memory capacity each joined node reports.")
	pflag.StringVar(&fixturePath, "fixture", "", "Optional scenario YAML file to seed the store with before ticking.")

	opts := zap.Options{}
	opts.BindFlags(flag.CommandLine)
	pflag.CommandLine.AddGoFlagSet(flag.CommandLine)
	pflag.Parse()

	ctrl.SetLogger(zap.New(zap.UseFlagOptions(&opts)))
	log := ctrl.Log.WithName("engine")

	if err := config.ConfigureMaxProcs(log); err != nil {
		setupLog.Error(err, "unable to configure GOMAXPROCS")
		os.Exit(1)
	}

	h, err := newHistory(consistency, store.RealClock)
	if err != nil {
		setupLog.Error(err, "invalid --consistency")
		os.Exit(1)
	}

	if fixturePath != "" {
		fixture, err := engine.LoadFixture(fixturePath)
		if err != nil {
			setupLog.Error(err, "unable to load fixture", "path", fixturePath)
			os.Exit(1)
		}
		if _, err := engine.Seed(h, fixture); err != nil {
			setupLog.Error(err, "unable to seed fixture", "path", fixturePath)
			os.Exit(1)
		}
	}

	capacity, err := parseCapacity(nodeCPU, nodeMemory)
	if err != nil {
		setupLog.Error(err, "invalid node capacity")
		os.Exit(1)
	}

	fleet := engine.NewFleet(buildFleet(nodeCount, capacity))
	driver := engine.NewDriver(h, fleet, store.RealClock)
	driver.Log = log

	metricsServer := metrics.PromServer{}
	driver.OnAction = func(c controllers.Controller, act *action.Action, committed bool, err error) {
		if act == nil {
			return
		}
		switch {
		case err != nil:
			metricsServer.RecordActionRejected(c.Kind.String(), act.Kind.String(), err.Error())
		case committed:
			metricsServer.RecordActionApplied(c.Kind.String(), act.Kind.String())
			recordResourceTotals(metricsServer, h)
		}
	}

	ctx := signals.Context(log)

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.HandlerFor(ctrlmetrics.Registry, promhttp.HandlerOpts{}))
	metricsMux.Handle("/healthz", http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) }))
	metricsSrv := &http.Server{Addr: metricsAddr, Handler: metricsMux}

	apiSrv := &http.Server{Addr: apiAddr, Handler: httpapi.NewServer(h, store.RealClock)}

	go func() {
		log.Info("serving metrics", "address", metricsAddr)
		if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error(err, "metrics server exited")
		}
	}()
	go func() {
		log.Info("serving Kubernetes-compatible API", "address", apiAddr)
		if err := apiSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error(err, "API server exited")
		}
	}()

	log.Info("starting driver", "consistency", consistency, "tickInterval", tickInterval, "nodes", nodeCount)
	driver.Run(ctx, tickInterval)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := apiSrv.Shutdown(shutdownCtx); err != nil {
		log.Error(err, "error shutting down API server")
	}
	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		log.Error(err, "error shutting down metrics server")
	}
}

// recordResourceTotals re-derives the per-kind object counts from the
// latest committed view and publishes them, so the resource_totals gauge
// always reflects what just got committed rather than drifting from
// create/delete actions tracked separately.
func recordResourceTotals(m metrics.Server, h history.History) {
	view, ok := h.StateAt(h.MaxRevision())
	if !ok {
		return
	}
	m.RecordResourceTotal("Node", view.Nodes.Len())
	m.RecordResourceTotal("Pod", view.Pods.Len())
	m.RecordResourceTotal("ReplicaSet", view.ReplicaSets.Len())
	m.RecordResourceTotal("Deployment", view.Deployments.Len())
	m.RecordResourceTotal("StatefulSet", view.StatefulSets.Len())
	m.RecordResourceTotal("Job", view.Jobs.Len())
	m.RecordResourceTotal("ControllerRevision", view.ControllerRevisions.Len())
	m.RecordResourceTotal("PersistentVolumeClaim", view.PVCs.Len())
}

func newHistory(name string, clock store.Clock) (history.History, error) {
	switch name {
	case "linearizable":
		return history.NewLinearizable(clock), nil
	case "monotonic-session":
		return history.NewMonotonicSession(clock), nil
	case "resettable-session":
		return history.NewResettableSession(clock), nil
	case "optimistic-linear":
		return history.NewOptimisticLinear(clock), nil
	case "causal":
		return history.NewCausal(clock), nil
	default:
		return nil, fmt.Errorf("unknown consistency variant %q", name)
	}
}

// buildFleet seeds one controller instance per singleton kind plus
// nodeCount Node controllers, each given a fresh instance id so the driver
// can distinguish sessions per controller even when several of the same
// kind are running (spec.md §5 "Local controller state" is keyed by id,
// not kind).
func buildFleet(nodeCount int, capacity resources.ResourceList) []controllers.Controller {
	cs := []controllers.Controller{
		{Kind: controllers.SchedulerKind, ID: uuid.NewString()},
		{Kind: controllers.ReplicaSetKind, ID: uuid.NewString()},
		{Kind: controllers.DeploymentKind, ID: uuid.NewString()},
		{Kind: controllers.StatefulSetKind, ID: uuid.NewString()},
		{Kind: controllers.JobKind, ID: uuid.NewString()},
		{Kind: controllers.PodGCKind, ID: uuid.NewString()},
	}
	for i := 0; i < nodeCount; i++ {
		cs = append(cs, controllers.Controller{Kind: controllers.NodeKind, ID: uuid.NewString(), NodeCapacity: capacity})
	}
	return cs
}

func parseCapacity(cpu, memory string) (resources.ResourceList, error) {
	cpuQty, err := resource.ParseQuantity(cpu)
	if err != nil {
		return nil, fmt.Errorf("node-cpu: %w", err)
	}
	memQty, err := resource.ParseQuantity(memory)
	if err != nil {
		return nil, fmt.Errorf("node-memory: %w", err)
	}
	return resources.ResourceList{
		resources.ResourceCPU:    cpuQty,
		resources.ResourceMemory: memQty,
	}, nil
}

