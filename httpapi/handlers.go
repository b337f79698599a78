package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"

	authgate "github.com/altairpay/authgate"
	"github.com/gorilla/mux"
)

const maxBodyBytes = 1 << 20

// createSessionBody is the wire shape of a session-creation request.
type createSessionBody struct {
	Purchase        authgate.PurchaseContext `json:"purchase"`
	SettingsVersion string                   `json:"settingsVersion,omitempty"`
}

// authenticateBody is the wire shape of an authenticate request.
type authenticateBody struct {
	SettingsVersion  string            `json:"settingsVersion,omitempty"`
	BrowserInfo      map[string]string `json:"browserInfo,omitempty"`
	SDKInfo          map[string]string `json:"sdkInfo,omitempty"`
	MethodCompletion string            `json:"threeDSMethodCompletionIndicator,omitempty"`
}

// createAndAuthenticateBody combines both.
type createAndAuthenticateBody struct {
	createSessionBody
	authenticateBody
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var body createSessionBody
	if err := decodeBody(r, &body); err != nil {
		renderError(w, err)
		return
	}
	session, err := s.gateway.CreateSession(r.Context(), mux.Vars(r)["account"], authgate.CreateSessionRequest{
		Purchase:        body.Purchase,
		SettingsVersion: body.SettingsVersion,
	})
	if err != nil {
		renderError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, session)
}

func (s *Server) handleCreateAndAuthenticate(w http.ResponseWriter, r *http.Request) {
	var body createAndAuthenticateBody
	if err := decodeBody(r, &body); err != nil {
		renderError(w, err)
		return
	}
	desc, err := s.gateway.CreateAndAuthenticate(r.Context(), mux.Vars(r)["account"],
		authgate.CreateSessionRequest{
			Purchase:        body.Purchase,
			SettingsVersion: body.createSessionBody.SettingsVersion,
		},
		authgate.AuthenticateRequest{
			SettingsVersion:  body.authenticateBody.SettingsVersion,
			BrowserInfo:      body.BrowserInfo,
			SDKInfo:          body.SDKInfo,
			MethodCompletion: body.MethodCompletion,
		})
	if err != nil {
		renderError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, desc)
}

func (s *Server) handleAuthenticate(w http.ResponseWriter, r *http.Request) {
	var body authenticateBody
	if err := decodeBody(r, &body); err != nil {
		renderError(w, err)
		return
	}
	vars := mux.Vars(r)
	desc, err := s.gateway.Authenticate(r.Context(), vars["account"], vars["id"], authgate.AuthenticateRequest{
		SettingsVersion:  body.SettingsVersion,
		BrowserInfo:      body.BrowserInfo,
		SDKInfo:          body.SDKInfo,
		MethodCompletion: body.MethodCompletion,
	})
	if err != nil {
		renderError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, desc)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	session, err := s.gateway.PollStatus(r.Context(), vars["account"], vars["id"])
	if err != nil {
		renderError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

func (s *Server) handleMethodURL(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	desc, err := s.gateway.ThreeDSMethodURL(r.Context(), vars["account"], vars["id"])
	if err != nil {
		renderError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, desc)
}

func (s *Server) handleBrowserAuthenticate(w http.ResponseWriter, r *http.Request) {
	s.browserAuthenticate(w, r, s.gateway.BrowserAuthenticate)
}

func (s *Server) handleBrowserAuthenticateIframe(w http.ResponseWriter, r *http.Request) {
	s.browserAuthenticate(w, r, s.gateway.BrowserAuthenticateIframe)
}

func (s *Server) browserAuthenticate(w http.ResponseWriter, r *http.Request,
	op func(ctx context.Context, account, id string, req authgate.AuthenticateRequest) (*authgate.ChallengeDescriptor, error)) {
	var body authenticateBody
	if err := decodeBody(r, &body); err != nil {
		renderError(w, err)
		return
	}
	vars := mux.Vars(r)
	desc, err := op(r.Context(), vars["account"], vars["id"], authgate.AuthenticateRequest{
		SettingsVersion:  body.SettingsVersion,
		BrowserInfo:      body.BrowserInfo,
		MethodCompletion: body.MethodCompletion,
	})
	if err != nil {
		renderError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, desc)
}

func (s *Server) handleAuthenticateRedirect(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	desc, err := s.gateway.AuthenticateRedirect(r.Context(), vars["account"], vars["id"])
	if err != nil {
		renderError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, desc)
}

func (s *Server) handleCompleteChallenge(w http.ResponseWriter, r *http.Request) {
	params := map[string]string{}
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch {
	case mediaType == "application/json":
		if err := decodeBody(r, &params); err != nil {
			renderError(w, err)
			return
		}
	default:
		// The access control server posts back a form.
		if err := r.ParseForm(); err != nil {
			renderError(w, fmt.Errorf("%w: malformed callback form", authgate.ErrInvalidRequest))
			return
		}
		for key := range r.PostForm {
			params[key] = r.PostForm.Get(key)
		}
	}

	desc, err := s.gateway.CompleteChallenge(r.Context(), mux.Vars(r)["id"], params)
	if err != nil {
		renderError(w, err)
		return
	}
	if desc.RedirectURL != "" {
		http.Redirect(w, r, desc.RedirectURL, http.StatusFound)
		return
	}
	writeJSON(w, http.StatusOK, desc)
}

func (s *Server) handleAuthenticationStatus(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	q := r.URL.Query()
	instrumentID := q.Get("piId")
	if instrumentID == "" {
		renderError(w, fmt.Errorf("%w: piId required", authgate.ErrInvalidRequest))
		return
	}

	req := authgate.VerifyRequest{
		InstrumentID: instrumentID,
		SessionID:    vars["id"],
	}
	if raw := q.Get("paymentContext"); raw != "" {
		var pc authgate.PurchaseContext
		if err := json.Unmarshal([]byte(raw), &pc); err != nil {
			renderError(w, fmt.Errorf("%w: malformed paymentContext", authgate.ErrInvalidRequest))
			return
		}
		req.Purchase = &pc
	}

	outcome, err := s.gateway.VerifyAuthentication(r.Context(), vars["account"], req)
	if err != nil {
		renderError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, outcome)
}

func decodeBody(r *http.Request, out any) error {
	data, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return fmt.Errorf("%w: read body: %v", authgate.ErrInvalidRequest, err)
	}
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%w: malformed json", authgate.ErrInvalidRequest)
	}
	return nil
}
