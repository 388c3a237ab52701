// Package testing provides test utilities for code built on the gateway client.
//
// # Fake gateway
//
// The fakegateway subpackage serves the automation backend's envelope API from
// an in-process echo server. Routes can fail a scripted number of times, add
// latency and record every request they receive:
//
//	gw := fakegateway.New(t,
//		fakegateway.GET("/equipment/camera/info", fakegateway.Envelope(map[string]any{"Connected": true})),
//		fakegateway.GET("/equipment/mount/info", fakegateway.FailFirst(2, http.StatusServiceUnavailable,
//			fakegateway.Envelope(map[string]any{"Connected": false}))),
//	)
//	client := httpclient.NewBuilder(nil).WithBaseURL(gw.URL()).Build()
//
// # Mocks
//
// The mocks subpackage provides testify-based implementations of
// httpclient.Client and httpclient.CredentialProvider.
package testing
