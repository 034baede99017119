package routes

import (
	"errors"
	"net/http"

	"github.com/go-chi/render"

	"github.com/scanradar/scanradar/app"
	"github.com/scanradar/scanradar/auth"
	"github.com/scanradar/scanradar/httpx"
	"github.com/scanradar/scanradar/log"
	"github.com/scanradar/scanradar/model"
	"github.com/scanradar/scanradar/store"
)

type registerRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

func Register(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body := registerRequest{}
		err := render.DecodeJSON(r.Body, &body)
		if err != nil || body.Email == "" || body.Password == "" {
			httpx.LogStatus(w, http.StatusBadRequest, log.DebugLevel, "request.parse_body")
			return
		}

		hash, err := auth.HashPassword(body.Password)
		if err != nil {
			httpx.LogInternalError(w, "register.hash_password", err)
			return
		}

		user, err := app.CreateUser(r.Context(), body.Email, body.Name, hash)
		if errors.Is(err, store.ErrConflict) {
			httpx.LogStatusMsg(w, http.StatusBadRequest, log.DebugLevel, "register.create_user", "User already exists")
			return
		}
		if err != nil {
			httpx.LogInternalError(w, "db.create_user", err)
			return
		}

		respondWithToken(w, r, app, user)
	}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func Login(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body := loginRequest{}
		err := render.DecodeJSON(r.Body, &body)
		if err != nil {
			httpx.LogStatus(w, http.StatusBadRequest, log.DebugLevel, "request.parse_body")
			return
		}

		user, err := app.UserByEmail(r.Context(), body.Email)
		if errors.Is(err, store.ErrNotFound) || (err == nil && !auth.CheckPassword(user.PasswordHash, body.Password)) {
			httpx.LogStatus(w, http.StatusUnauthorized, log.DebugLevel, "login.invalid_credentials")
			return
		}
		if err != nil {
			httpx.LogInternalError(w, "db.get_user", err)
			return
		}

		respondWithToken(w, r, app, user)
	}
}

func respondWithToken(w http.ResponseWriter, r *http.Request, app app.App, user model.User) {
	token, err := app.Tokens.Sign(user.ID, user.Email)
	if err != nil {
		httpx.LogInternalError(w, "auth.sign_token", err)
		return
	}

	render.JSON(w, r, map[string]any{
		"token": token,
		"user": map[string]any{
			"id":    user.ID,
			"email": user.Email,
			"name":  user.Name,
		},
	})
}
