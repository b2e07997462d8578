// Package binder maps an inbound JSON request body to validated, typed
// handler arguments.
//
// Each route registers a list of Param descriptors next to its handler. The
// binder rejects the request before the handler runs unless every declared
// parameter resolves: the body must be a JSON object, typed parameters must
// be present with exactly the declared JSON type (no coercion), and resolver
// parameters such as the authenticated user must succeed. Resolution is
// all-or-nothing; a handler never sees a partial argument list.
package binder

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"isometric/internal/authcache"
)

// DateFormat is the wire format for date parameters.
const DateFormat = "2006-01-02"

// Kind describes how a parameter is resolved from the request body.
type Kind int

const (
	// Untyped parameters are skipped: they resolve to nothing and are
	// never visible to the handler.
	Untyped Kind = iota
	// String requires a JSON string field of the same name.
	String
	// Int requires a JSON number field with no fractional part.
	Int
	// Number requires a JSON number field, kept as an exact decimal.
	Number
	// Date requires a JSON string field in DateFormat.
	Date
	// AuthUser resolves the field as a session token through the token
	// cache, failing the request with 401 when it is missing or unknown.
	AuthUser
)

// Param declares one handler parameter. Optional parameters may be absent
// from the body, but when present they must still match the declared type.
type Param struct {
	Name     string
	Kind     Kind
	Optional bool
}

// Auth is the conventional authenticated-user parameter.
func Auth() Param {
	return Param{Name: "authtoken", Kind: AuthUser}
}

// Args holds the resolved arguments for one request. Accessors return zero
// values for parameters that were optional and absent.
type Args struct {
	userID int64
	values map[string]any
}

// UserID returns the authenticated user resolved by an AuthUser parameter.
func (a Args) UserID() int64 {
	return a.userID
}

// Has reports whether the named parameter was present in the request.
func (a Args) Has(name string) bool {
	_, ok := a.values[name]
	return ok
}

// String returns the named string parameter.
func (a Args) String(name string) string {
	s, _ := a.values[name].(string)
	return s
}

// Int returns the named integer parameter.
func (a Args) Int(name string) int64 {
	n, _ := a.values[name].(int64)
	return n
}

// Number returns the named decimal parameter.
func (a Args) Number(name string) decimal.Decimal {
	d, _ := a.values[name].(decimal.Decimal)
	return d
}

// Date returns the named date parameter.
func (a Args) Date(name string) time.Time {
	t, _ := a.values[name].(time.Time)
	return t
}

// HandlerFunc is a route handler body. It returns a JSON-serializable value
// and an HTTP status code; zero means 200.
type HandlerFunc func(args Args) (any, int)

// Binder builds http.HandlerFuncs from parameter descriptors. It owns the
// token cache used to resolve AuthUser parameters.
type Binder struct {
	cache *authcache.Cache
}

// New creates a Binder resolving auth tokens against cache.
func New(cache *authcache.Cache) *Binder {
	return &Binder{cache: cache}
}

// failure aborts resolution with a status and error body.
type failure struct {
	status int
	body   any
}

// Endpoint wraps handler with parameter resolution for a POST JSON route.
func (b *Binder) Endpoint(params []Param, handler HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeJSON(w, http.StatusMethodNotAllowed, errorBody("method not allowed"))
			return
		}

		body, ok := decodeObject(r)
		if !ok {
			writeJSON(w, http.StatusBadRequest, errorBody("request body must be a JSON object"))
			return
		}

		args := Args{values: make(map[string]any)}
		for _, p := range params {
			if fail := b.resolve(&args, p, body); fail != nil {
				writeJSON(w, fail.status, fail.body)
				return
			}
		}

		result, status := handler(args)
		if status == 0 {
			status = http.StatusOK
		}
		writeJSON(w, status, result)
	}
}

func decodeObject(r *http.Request) (map[string]any, bool) {
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, false
	}
	obj, ok := raw.(map[string]any)
	return obj, ok
}

func (b *Binder) resolve(args *Args, p Param, body map[string]any) *failure {
	if p.Kind == AuthUser {
		token, ok := body[p.Name].(string)
		if !ok {
			return &failure{http.StatusUnauthorized, errorBody("login required")}
		}
		userID, ok := b.cache.Get(token)
		if !ok {
			return &failure{http.StatusUnauthorized, errorBody("login required")}
		}
		args.userID = userID
		return nil
	}

	raw, present := body[p.Name]
	if !present {
		if p.Optional || p.Kind == Untyped {
			return nil
		}
		return &failure{http.StatusBadRequest,
			errorBody(fmt.Sprintf("missing parameter %q", p.Name))}
	}

	switch p.Kind {
	case String:
		s, ok := raw.(string)
		if !ok {
			return wrongType(p)
		}
		args.values[p.Name] = s
	case Int:
		n, ok := raw.(json.Number)
		if !ok {
			return wrongType(p)
		}
		// Int64 fails on any fractional part, so "2.5" and "2.0" are
		// both rejected, matching strict integer typing.
		v, err := n.Int64()
		if err != nil {
			return wrongType(p)
		}
		args.values[p.Name] = v
	case Number:
		n, ok := raw.(json.Number)
		if !ok {
			return wrongType(p)
		}
		d, err := decimal.NewFromString(n.String())
		if err != nil {
			return wrongType(p)
		}
		args.values[p.Name] = d
	case Date:
		s, ok := raw.(string)
		if !ok {
			return wrongType(p)
		}
		t, err := time.Parse(DateFormat, s)
		if err != nil {
			return &failure{http.StatusBadRequest,
				errorBody(fmt.Sprintf("parameter %q is not a valid date", p.Name))}
		}
		args.values[p.Name] = t
	}
	return nil
}

func wrongType(p Param) *failure {
	return &failure{http.StatusBadRequest,
		errorBody(fmt.Sprintf("parameter %q has the wrong type", p.Name))}
}

func errorBody(msg string) map[string]string {
	return map[string]string{"error": msg}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Failed to encode response: %v", err)
	}
}
