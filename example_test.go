package netapi_test

import (
	"fmt"
	"net/http"
	"net/http/httptest"

	netapi "github.com/MrEthical07/netapi"
	"github.com/MrEthical07/netapi/registry"
)

type greeter struct{}

type greeting struct {
	Name string `param:"name"`
}

func (greeter) Hello(g greeting) (string, error) {
	return "hello, " + g.Name, nil
}

// ExampleNew builds an engine with in-memory sessions and dispatches one request.
func ExampleNew() {
	svc := registry.NewService[greeter]("demo.Greeter", nil)
	registry.Method1(svc, "hello", greeter.Hello, registry.Exposed())

	cfg := netapi.DefaultConfig()
	cfg.ServicePath = "demo"
	cfg.JWT.Secret = "example-secret-0123456789abcdef!"

	engine, err := netapi.New().WithConfig(cfg).WithServices(svc).Build()
	if err != nil {
		fmt.Println(err)
		return
	}
	defer engine.Close()

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/Greeter/hello?name=ada", nil))
	fmt.Println(w.Code, w.Body.String())
	// Output: 200 {"dto":"hello, ada"}
}

// ExampleEngine_Dispatch reports an unknown operation in the requested format.
func ExampleEngine_Dispatch() {
	svc := registry.NewService[greeter]("demo.Greeter", nil)
	registry.Method1(svc, "hello", greeter.Hello, registry.Exposed())

	cfg := netapi.DefaultConfig()
	cfg.ServicePath = "demo"
	cfg.JWT.Secret = "example-secret-0123456789abcdef!"

	engine, err := netapi.New().WithConfig(cfg).WithServices(svc).Build()
	if err != nil {
		fmt.Println(err)
		return
	}
	defer engine.Close()

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/anything?outputType=yaml", nil)
	engine.Dispatch(w, r, "Greeter/goodbye")
	fmt.Print(w.Code, "\n", w.Body.String())
	// Output:
	// 404
	// exception:
	//     code: UnknownEndpoint
	//     message: operation demo.Greeter.goodbye not found
}

// ExampleEngine_MetricsSnapshot reads in-process dispatch counters.
func ExampleEngine_MetricsSnapshot() {
	var engine *netapi.Engine
	snapshot := engine.MetricsSnapshot()
	_ = snapshot.Counters[netapi.MetricDispatchTotal]
}
