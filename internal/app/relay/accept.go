package relay

import "net/http"

// RootPath is the only endpoint a client may connect to.
const RootPath = "/"

// Accept is the connection-acceptance guard: only the root path may open a
// session.
func Accept(r *http.Request) bool {
	return r.URL.Path == RootPath
}
