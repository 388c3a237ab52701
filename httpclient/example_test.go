package httpclient_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"time"

	"github.com/gaborage/go-observatory/httpclient"
)

type focuserInfo struct {
	Connected bool `json:"Connected"`
	Position  int  `json:"Position"`
}

func newExampleBackend() *httptest.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/v2/api/equipment/focuser/info", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"Success":true,"Response":{"Connected":true,"Position":4210},"StatusCode":200,"Type":"API"}`)
	})
	mux.HandleFunc("/v2/api/equipment/rotator/info", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"message":"Rotator not connected"}`)
	})
	return httptest.NewServer(mux)
}

func ExampleGetEnvelope() {
	backend := newExampleBackend()
	defer backend.Close()

	client := httpclient.NewBuilder(nil).
		WithBaseURL(backend.URL + "/v2/api").
		WithRetries(2, 100*time.Millisecond).
		Build()
	defer client.Close()

	env, err := httpclient.GetEnvelope[focuserInfo](context.Background(), client, &httpclient.Request{
		URL:   "/equipment/focuser/info",
		Cache: true,
	})
	if err != nil {
		fmt.Println(err)
		return
	}
	info, err := env.Result()
	if err != nil {
		fmt.Println(err)
		return
	}
	fmt.Println(info.Connected, info.Position)
	// Output: true 4210
}

func ExampleIsKind() {
	backend := newExampleBackend()
	defer backend.Close()

	client := httpclient.NewBuilder(nil).WithBaseURL(backend.URL + "/v2/api").Build()
	defer client.Close()

	_, err := client.Get(context.Background(), &httpclient.Request{URL: "/equipment/rotator/info"})
	if httpclient.IsKind(err, httpclient.ClientError) {
		fmt.Println(err)
	}
	// Output: ClientError: Rotator not connected (status: 404)
}
