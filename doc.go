// Package redbot is a small client for the Reddit API aimed at bots running
// under a "script" application.
//
// # Overview
//
// A Client authenticates with the OAuth2 password grant, caches the access
// token and the account identity, and then issues authenticated requests.
// Listing endpoints are fetched page by page with QueryListing, which follows
// the server's cursor until it runs out or the requested number of pages has
// been read.
//
// # Quick Start
//
//	config, err := redbot.LoadConfig("credentials.json")
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	client, err := redbot.NewClient(config)
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	if err := client.Login(ctx); err != nil {
//		log.Fatal(err)
//	}
//
//	sub, err := client.GetSubreddit(ctx, "golang")
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	posts, err := sub.TopPosts(ctx, 25)
//	if err != nil {
//		log.Fatal(err)
//	}
//	for _, post := range posts {
//		fmt.Printf("%s (score: %d)\n", post.Title, post.Score)
//	}
//
// # Connection Lifecycle
//
// NewClient performs no network I/O. The client starts logged out; Login
// fetches a token and then the identity from api/v1/me, and publishes both
// at once only if both requests succeed. Requests sent while logged out
// carry no Authorization header. Tokens are not refreshed automatically;
// call Login again when the server starts answering 401.
//
// # Raw Queries
//
// Query sends any method to any path relative to the API base URL and
// returns the raw response. The placeholder {username} in a path is replaced
// by the logged-in account name:
//
//	resp, err := client.Query(ctx, "GET", "user/{username}/saved", nil, nil)
//
// # Listings
//
//	req := redbot.NewListingRequest("r/golang/new", 100, 3)
//	items, err := client.QueryListing(ctx, req)
//
// Items are returned as json.RawMessage in server order. PostFromItem and
// CommentFromItem decode "t3" and "t1" items into typed wrappers.
//
// # Error Handling
//
// Every error returned by this package is a *errors.APIError from
// pkg/errors. Its Source names the failing layer ("transport", "io",
// "decode", "invalid_method") and is empty for failures detected by the
// client itself, such as a non-2xx status or a response missing an expected
// field:
//
//	var apiErr *pkgerrs.APIError
//	if errors.As(err, &apiErr) && apiErr.Source == pkgerrs.SourceTransport {
//		// network problem
//	}
//
// # Observability
//
// Config.Logger receives debug records for logins, requests, listing pages
// and rate-limit headers; a warning is logged, at most once a minute, when
// the remaining request budget runs low. Requests and logins are traced
// through the global OpenTelemetry tracer provider, and Config.MetricsRegisterer
// receives Prometheus request, page and login collectors.
//
// # Thread Safety
//
// A Client is safe for concurrent use. Login calls are serialized and the
// session is swapped atomically, so concurrent queries see either the old
// or the new session, never a mix.
package redbot
