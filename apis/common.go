package apis

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
)

// MethodHandlers is a dict of HTTP-method to handler for one path.
type MethodHandlers map[string]http.HandlerFunc

// RegisterPathPrefix registers methodHandlers under pathPrefix on parentRouter
// and returns the subrouter, so nested path segments can register against it.
func RegisterPathPrefix(
	parentRouter *mux.Router, pathPrefix string, methodHandlers MethodHandlers,
) *mux.Router {
	router := parentRouter.PathPrefix(pathPrefix).Subrouter()
	for method, handler := range methodHandlers {
		router.Methods(method).Path("").HandlerFunc(handler)
	}
	return router
}

// parseSubscriptionID reads the subscriptionID path variable as a uint32.
func parseSubscriptionID(r *http.Request) (uint32, bool) {
	raw, ok := mux.Vars(r)["subscriptionID"]
	if !ok {
		return 0, false
	}
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		return 0, false
	}
	return uint32(id), true
}
