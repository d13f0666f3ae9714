// Package routes is the registry of HTTP endpoints. Features register their
// routes from init and the server mounts them all on one router.
package routes

import (
	"fmt"
	"net/http"
	"sort"
	"sync"

	"github.com/julienschmidt/httprouter"
)

type Route struct {
	Id      string
	Path    string
	Method  string
	Handler httprouter.Handle
}

type State struct {
	Routes map[string]Route
}

var (
	mu    sync.RWMutex
	state State
)

func isValidMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodPost, http.MethodPut, http.MethodDelete:
		return true
	default:
		return false
	}
}

func Register(route Route) {
	mu.Lock()
	defer mu.Unlock()

	if !isValidMethod(route.Method) {
		panic(fmt.Sprintf("invalid HTTP method %s", route.Method))
	}
	if route.Handler == nil {
		panic(fmt.Sprintf("route %s has no handler", route.Id))
	}
	if _, found := state.Routes[route.Id]; found {
		panic(fmt.Sprintf("route already registered %s", route.Id))
	}
	state.Routes[route.Id] = route
}

func Get(id string) (Route, bool) {
	mu.RLock()
	defer mu.RUnlock()

	route, found := state.Routes[id]
	return route, found
}

// List returns the registered route ids in order.
func List() []string {
	mu.RLock()
	defer mu.RUnlock()

	list := make([]string, 0, len(state.Routes))
	for id := range state.Routes {
		list = append(list, id)
	}
	sort.Strings(list)
	return list
}

// Mount adds every registered route to router.
func Mount(router *httprouter.Router) {
	for _, id := range List() {
		if route, found := Get(id); found {
			router.Handle(route.Method, route.Path, route.Handler)
		}
	}
}

func init() {
	mu.Lock()
	defer mu.Unlock()
	state = State{}
	state.Routes = make(map[string]Route)
}
