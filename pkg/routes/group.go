package routes

import "net/http"

// Group organizes routes under a common prefix.
type Group struct {
	Prefix   string
	Routes   []Route
	Children []Group
}

// Register adds all routes from the given groups to the mux.
func Register(mux *http.ServeMux, groups ...Group) {
	for _, group := range groups {
		registerGroup(mux, "", group)
	}
}

// Walk visits every route in the group tree with its fully-qualified
// pattern, in registration order.
func (g Group) Walk(fn func(method, pattern string)) {
	walkGroup("", g, fn)
}

func registerGroup(mux *http.ServeMux, parentPrefix string, group Group) {
	fullPrefix := parentPrefix + group.Prefix
	for _, route := range group.Routes {
		mux.HandleFunc(route.Endpoint(fullPrefix), route.Handler)
	}
	for _, child := range group.Children {
		registerGroup(mux, fullPrefix, child)
	}
}

func walkGroup(parentPrefix string, group Group, fn func(method, pattern string)) {
	fullPrefix := parentPrefix + group.Prefix
	for _, route := range group.Routes {
		fn(route.Method, fullPrefix+route.Pattern)
	}
	for _, child := range group.Children {
		walkGroup(fullPrefix, child, fn)
	}
}
