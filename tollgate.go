// Package tollgate is an HTTP middleware that puts Lightning Network
// payments in front of selected routes. Requests either present a paid L402
// token, opt in to receiving a payment challenge, or pass through untouched.
// The classification outcome is handed to the wrapped handler through the
// request context, so the route itself decides how much weight to give it.
package tollgate

import (
	"encoding/json"
	"net/http"

	"github.com/tollgate-ln/tollgate/auth"
	"github.com/tollgate-ln/tollgate/l402"
	"github.com/tollgate-ln/tollgate/lnclient"
	"github.com/tollgate-ln/tollgate/mint"
)

// AmountFunc prices a single request in millisatoshi.
type AmountFunc func(r *http.Request) uint64

// CaveatFunc returns the caveats bound into a freshly minted macaroon for
// the given request.
type CaveatFunc func(r *http.Request) []l402.Caveat

// MiddlewareConfig bundles everything needed to construct the middleware.
type MiddlewareConfig struct {
	// Authenticator verifies tokens and mints challenges. If nil, one is
	// built from Env.
	Authenticator auth.Authenticator

	// Env is the environment configuration used to build the
	// authenticator when none is given. If nil too, the process
	// environment is read.
	Env *Config

	// AmountMsat is the static price of every request, in millisatoshi.
	AmountMsat uint64

	// AmountFunc prices requests individually and takes precedence over
	// AmountMsat when set.
	AmountFunc AmountFunc

	// CaveatFunc returns the caveats of freshly minted macaroons. When
	// nil, every macaroon is bound to the path it was requested on.
	CaveatFunc CaveatFunc
}

// Middleware classifies incoming requests and issues payment challenges.
type Middleware struct {
	authenticator auth.Authenticator
	amount        AmountFunc
	caveats       CaveatFunc
}

// NewMiddleware builds the middleware from the given config, constructing
// the mint and Lightning backend from the environment if no authenticator
// is injected.
func NewMiddleware(cfg *MiddlewareConfig) (*Middleware, error) {
	authenticator := cfg.Authenticator
	if authenticator == nil {
		env := cfg.Env
		if env == nil {
			var err error
			env, err = ConfigFromEnv()
			if err != nil {
				return nil, err
			}
		}

		minter, err := mint.New(&mint.Config{
			RootKey: env.rootKeyBytes(),
		})
		if err != nil {
			return nil, err
		}
		client, err := lnclient.NewClient(env.lnclientConfig())
		if err != nil {
			return nil, err
		}

		authenticator = auth.NewL402Authenticator(minter, client)
	}

	amount := cfg.AmountFunc
	if amount == nil {
		static := cfg.AmountMsat
		amount = func(*http.Request) uint64 {
			return static
		}
	}

	caveats := cfg.CaveatFunc
	if caveats == nil {
		caveats = func(r *http.Request) []l402.Caveat {
			return []l402.Caveat{l402.NewCaveat(
				l402.CondRequestPath, l402.OpEqual,
				l402.NormalizePath(r.URL.Path),
			)}
		}
	}

	return &Middleware{
		authenticator: authenticator,
		amount:        amount,
		caveats:       caveats,
	}, nil
}

// Process classifies a single request. It returns the classification record
// and whether the request should continue on to the wrapped handler. When
// the second return value is false, the response has already been written.
func (m *Middleware) Process(w http.ResponseWriter,
	r *http.Request) (*l402.Info, bool) {

	// A presented token always wins over the challenge opt-in, no matter
	// whether it verifies or not.
	if r.Header.Get(l402.HeaderAuthorization) != "" {
		err := m.authenticator.Accept(&r.Header, r.URL.Path)
		if err != nil {
			log.Debugf("Token for %s rejected: %v", r.URL.Path,
				err)
			return &l402.Info{
				Type:  l402.ClassificationError,
				Error: err,
			}, true
		}

		_, preimage, err := l402.FromHeader(&r.Header)
		if err != nil {
			// Accept just parsed this same header successfully.
			return &l402.Info{
				Type:  l402.ClassificationError,
				Error: err,
			}, true
		}
		paymentHash := preimage.Hash()

		log.Debugf("Token for %s accepted, payment hash %v",
			r.URL.Path, paymentHash)

		return &l402.Info{
			Type:        l402.ClassificationPaid,
			Preimage:    &preimage,
			PaymentHash: &paymentHash,
		}, true
	}

	// Clients that don't announce challenge support just pass through.
	if acceptAuthRequired && !l402.AcceptsL402(&r.Header) {
		return &l402.Info{Type: l402.ClassificationFree}, true
	}

	amountMsat := m.amount(r)
	if amountMsat < lnclient.MinInvoiceMsat {
		amountMsat = lnclient.MinInvoiceMsat
	}

	challenge, err := m.authenticator.FreshChallenge(
		r.Context(), r, amountMsat, m.caveats(r)...,
	)
	if err != nil {
		log.Errorf("Unable to create challenge for %s: %v",
			r.URL.Path, err)
		writeJSON(w, http.StatusInternalServerError, &errorBody{
			Error: "challenge creation failed",
		})

		return &l402.Info{
			Type:  l402.ClassificationError,
			Error: err,
		}, false
	}

	log.Debugf("Challenging request to %s over %d msat", r.URL.Path,
		amountMsat)

	w.Header().Set(l402.HeaderWWWAuthenticate, challenge.HeaderValue())
	writeJSON(w, http.StatusPaymentRequired, &challengeBody{
		Error:    "payment required",
		Macaroon: challenge.Macaroon,
		Invoice:  challenge.Invoice,
	})

	return &l402.Info{
		Type:     l402.ClassificationPaymentRequired,
		Invoice:  challenge.Invoice,
		Macaroon: challenge.Macaroon,
	}, false
}

// Wrap turns the middleware into standard net/http middleware. Requests
// that pass classification reach the next handler with the classification
// record attached to their context.
func (m *Middleware) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		info, proceed := m.Process(w, r)
		if !proceed {
			return
		}

		ctx := l402.AddToContext(r.Context(), info)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// challengeBody is the JSON body of a 402 response. The challenge proper
// lives in the WWW-Authenticate header; the body repeats it for clients
// that find JSON easier to consume.
type challengeBody struct {
	Error    string `json:"error"`
	Macaroon string `json:"macaroon"`
	Invoice  string `json:"invoice"`
}

// errorBody is the JSON body of an error response.
type errorBody struct {
	Error string `json:"error"`
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Errorf("Unable to write response body: %v", err)
	}
}
