// Package moya is a request dispatch engine that sits between an API
// client's description of its calls and the transport that executes them:
//
//   - Targets describe calls declaratively (base URL, path, method, parameters, sample data)
//   - Endpoints are immutable, composable request descriptions with structural equality
//   - Stubbing answers requests from sample data immediately or after a delay
//   - In-flight tracking coalesces concurrent identical requests into one execution
//   - Plugins observe every dispatch and every outcome
//   - Cancellable tokens suppress delivery and abort the underlying call
//   - Prometheus metrics and structured debug logging
//
// Typical usage:
//
//	provider := moya.New[GitHub](
//	    moya.WithInflightTracking[GitHub](),
//	    moya.WithPlugins[GitHub](moya.NewNetworkLoggerPlugin[GitHub](logger)),
//	)
//	provider.Request(ctx, Zen{}, func(result moya.Result) {
//	    resp, err := result.Unwrap()
//	    ...
//	})
//
// Tests switch a provider to sample data with WithStubSelector:
//
//	provider := moya.New[GitHub](moya.WithStubSelector[GitHub](moya.ImmediatelyStubSelector[GitHub]))
//
// Results are delivered exactly once per caller, never for a caller that
// cancelled. No retries happen at this layer; layer them on top of the
// completion callback or Do.
package moya
