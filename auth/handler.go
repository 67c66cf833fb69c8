package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"runtime"
	"skillduels/domain"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/gin-gonic/gin"
)

var (
	ErrMissingTokenStr           = "missing-token"
	ErrExpiredTokenStr           = "expired-token"
	ErrServerTimeoutStr          = "server-timeout"
	ErrInvalidRequestFormatStr   = "bad-request-format"
	ErrInvalidCredentialsStr     = "invalid-credentials"
	ErrUnknownStr                = "unknown-error"
	ErrUsernameAlreadyExistsStr  = "username-already-exists"
	ErrWalletAlreadyExistsStr    = "wallet-already-exists"
	ErrWeakPasswordStr           = "weak-password"
	ErrPasswordTooLongStr        = "password-too-long"
	ErrInvalidUsernameFormatStr  = "invalid-username-format"
	ErrInvalidWalletAddressStr   = "invalid-wallet-address"
	ErrAccountCreatedButNoToken  = "account-created-but-no-token"
	ErrUnauthenticatedStr        = "unauthenticated"
	ErrUserNotFoundStr           = "user-not-found"
	ErrBadTokenStr               = "bad-token"
	statusClientClosedRequest    = 499
	redactedSignatureVisibleRune = 10
)

type authHandler struct {
	authService  AuthService
	cookieMaxAge time.Duration
}

func NewAuthHandler(service AuthService, cookieMaxAge time.Duration) *authHandler {
	return &authHandler{authService: service, cookieMaxAge: cookieMaxAge}
}

// redactToken keeps the header and claims of a JWT but hides most of the
// signature, so logged tokens cannot be replayed.
func redactToken(token string) string {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return token
	}
	sig := []rune(parts[2])
	if len(sig) >= redactedSignatureVisibleRune {
		parts[2] = string(sig[:redactedSignatureVisibleRune]) + strings.Repeat("*", len(sig)-redactedSignatureVisibleRune)
	}
	return strings.Join(parts, ".")
}

func (ah *authHandler) setSessionCookie(ctx *gin.Context, token string) {
	ctx.SetSameSite(http.SameSiteNoneMode)
	ctx.SetCookie("token", token, int(ah.cookieMaxAge.Seconds()), "/", "", true, true)
}

func (ah *authHandler) RequireAuthMiddleware(trollTime time.Duration) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		token, err := ctx.Cookie("token")
		if err != nil {
			ctx.String(http.StatusUnauthorized, ErrMissingTokenStr)
			ctx.Abort()
			return
		}

		id, err := ah.authService.VerifyToken(token)
		if err != nil {
			clientIP := ctx.ClientIP()
			switch {
			case errors.Is(err, domain.ErrInvalidSigningAlg),
				errors.Is(err, domain.ErrInvalidTokenSignature),
				errors.Is(err, domain.ErrCorruptedToken):

				slog.Warn("RequireAuthMiddleware: suspicious token attempt",
					"ip", clientIP,
					"user_agent", ctx.Request.UserAgent(),
					"error", err.Error(),
					"token", redactToken(token),
				)
				time.Sleep(trollTime)
				ctx.Status(http.StatusInternalServerError)

			case errors.Is(err, domain.ErrExpiredToken):
				slog.Info("RequireAuthMiddleware: token expired", "ip", clientIP, "token", redactToken(token))
				ctx.String(http.StatusUnauthorized, ErrExpiredTokenStr)

			default:
				slog.Error("RequireAuthMiddleware: internal auth error",
					"ip", clientIP,
					"error", err.Error(),
					"token", redactToken(token),
				)
				ctx.String(http.StatusUnauthorized, ErrUnknownStr)
			}
			ctx.Abort()
			return
		}

		ctx.Set("id", id)
		ctx.Next()
	}
}

func (ah *authHandler) LoginHandler(ctx *gin.Context) {
	var loginCredentials struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}

	if err := ctx.ShouldBindJSON(&loginCredentials); err != nil {
		ctx.String(http.StatusBadRequest, ErrInvalidRequestFormatStr)
		ctx.Abort()
		return
	}

	token, err := ah.authService.Login(ctx.Request.Context(), loginCredentials.Username, loginCredentials.Password)
	if err != nil {
		clientIP := ctx.ClientIP()
		userAgent := ctx.Request.UserAgent()
		switch {
		case errors.Is(err, ErrIncorrectPassword), errors.Is(err, domain.ErrUserNotFound):
			ctx.String(http.StatusUnauthorized, ErrInvalidCredentialsStr)

		case errors.Is(err, context.DeadlineExceeded):
			ctx.String(http.StatusGatewayTimeout, ErrServerTimeoutStr)

		case errors.Is(err, context.Canceled):
			ctx.Status(statusClientClosedRequest)

		case errors.Is(err, domain.UnexpectedDatabaseError):
			slog.Error("Login: Database returned an unexpected error",
				"error", err.Error(),
				"ip", clientIP,
				"user_agent", userAgent,
				"username", loginCredentials.Username,
			)
			ctx.String(http.StatusInternalServerError, ErrUnknownStr)

		case errors.Is(err, domain.UnexpectedPasswordHashComparisonError):
			var mem runtime.MemStats
			runtime.ReadMemStats(&mem)
			slog.Error("Login: Hashing comparison error",
				"error", err.Error(),
				"ip", clientIP,
				"user_agent", userAgent,
				"username", loginCredentials.Username,
				"password_len", utf8.RuneCountInString(loginCredentials.Password),
				"mem_alloc_mb", (mem.Alloc/1024)/1024,
				"mem_sys_mb", (mem.Sys/1024)/1024,
			)
			ctx.String(http.StatusInternalServerError, ErrUnknownStr)

		case errors.Is(err, domain.UnexpectedTokenGenerationError):
			slog.Error("Login: Token generation error",
				"error", err.Error(),
				"ip", clientIP,
				"user_agent", userAgent,
				"username", loginCredentials.Username,
			)
			ctx.String(http.StatusInternalServerError, ErrUnknownStr)

		default:
			slog.Error("Login: Unknown unexpected error",
				"error", err.Error(),
				"ip", clientIP,
				"user_agent", userAgent,
				"username", loginCredentials.Username,
			)
			ctx.String(http.StatusInternalServerError, ErrUnknownStr)
		}
		ctx.Abort()
		return
	}

	ah.setSessionCookie(ctx, token)
	ctx.Status(http.StatusOK)
}

func (ah *authHandler) SignupHandler(ctx *gin.Context) {
	var signupCredentials struct {
		Username      string `json:"username"`
		Password      string `json:"password"`
		WalletAddress string `json:"walletAddress"`
	}

	if err := ctx.ShouldBindJSON(&signupCredentials); err != nil {
		ctx.String(http.StatusBadRequest, ErrInvalidRequestFormatStr)
		ctx.Abort()
		return
	}

	token, err := ah.authService.Signup(ctx.Request.Context(), signupCredentials.Username, signupCredentials.Password, signupCredentials.WalletAddress)
	if err != nil {
		clientIP := ctx.ClientIP()
		userAgent := ctx.Request.UserAgent()

		switch {
		case errors.Is(err, domain.ErrDuplicateUsername):
			ctx.String(http.StatusConflict, ErrUsernameAlreadyExistsStr)

		case errors.Is(err, domain.ErrDuplicateWallet):
			ctx.String(http.StatusConflict, ErrWalletAlreadyExistsStr)

		case errors.Is(err, ErrWeakPassword):
			ctx.String(http.StatusBadRequest, ErrWeakPasswordStr)

		case errors.Is(err, ErrPasswordTooLong):
			ctx.String(http.StatusBadRequest, ErrPasswordTooLongStr)

		case errors.Is(err, ErrInvalidUsernameFormat):
			ctx.String(http.StatusBadRequest, ErrInvalidUsernameFormatStr)

		case errors.Is(err, ErrInvalidWalletAddress):
			ctx.String(http.StatusBadRequest, ErrInvalidWalletAddressStr)

		case errors.Is(err, context.DeadlineExceeded):
			ctx.String(http.StatusGatewayTimeout, ErrServerTimeoutStr)

		case errors.Is(err, context.Canceled):
			ctx.Status(statusClientClosedRequest)

		case errors.Is(err, domain.UnexpectedDatabaseError):
			slog.Error("Signup: Database returned an unexpected error",
				"error", err.Error(),
				"ip", clientIP,
				"user_agent", userAgent,
				"username", signupCredentials.Username,
			)
			ctx.String(http.StatusInternalServerError, ErrUnknownStr)

		case errors.Is(err, domain.UnexpectedPasswordHashingError):
			var mem runtime.MemStats
			runtime.ReadMemStats(&mem)
			slog.Error("Signup: Password hashing error",
				"error", err.Error(),
				"ip", clientIP,
				"user_agent", userAgent,
				"username", signupCredentials.Username,
				"password_len", utf8.RuneCountInString(signupCredentials.Password),
				"mem_alloc_mb", (mem.Alloc/1024)/1024,
				"mem_sys_mb", (mem.Sys/1024)/1024,
			)
			ctx.String(http.StatusInternalServerError, ErrUnknownStr)

		case errors.Is(err, domain.UnexpectedTokenGenerationError):
			slog.Error("Signup: Token generation error",
				"error", err.Error(),
				"ip", clientIP,
				"user_agent", userAgent,
				"username", signupCredentials.Username,
			)
			ctx.String(http.StatusInternalServerError, ErrAccountCreatedButNoToken)

		default:
			slog.Error("Signup: Unknown unexpected error",
				"error", err.Error(),
				"ip", clientIP,
				"user_agent", userAgent,
				"username", signupCredentials.Username,
			)
			ctx.String(http.StatusInternalServerError, ErrUnknownStr)
		}
		ctx.Abort()
		return
	}

	ah.setSessionCookie(ctx, token)
	ctx.Status(http.StatusCreated)
}

func (ah *authHandler) RefreshSessionHandler(ctx *gin.Context) {
	token, err := ctx.Cookie("token")
	if err != nil {
		ctx.String(http.StatusUnauthorized, ErrUnauthenticatedStr)
		return
	}

	id, err := ah.authService.VerifyToken(token)
	if err != nil {
		slog.Warn("Refresh: Invalid token provided",
			"ip", ctx.ClientIP(),
			"user_agent", ctx.Request.UserAgent(),
			"error", err.Error(),
			"token", redactToken(token),
		)
		ctx.String(http.StatusUnauthorized, ErrBadTokenStr)
		return
	}

	newToken, err := ah.authService.GenerateToken(id)
	if err != nil {
		slog.Error("Refresh: Failed to generate new token",
			"ip", ctx.ClientIP(),
			"error", err.Error(),
			"user_id", id,
		)
		ctx.Status(http.StatusInternalServerError)
		return
	}

	ah.setSessionCookie(ctx, newToken)
	ctx.Status(http.StatusOK)
}

func (ah *authHandler) LogoutHandler(ctx *gin.Context) {
	ctx.SetSameSite(http.SameSiteNoneMode)
	ctx.SetCookie("token", "", -1, "/", "", true, true)
}

// ProfileHandler serves the caller's stats. It runs behind RequireAuthMiddleware.
func (ah *authHandler) ProfileHandler(ctx *gin.Context) {
	id := ctx.GetString("id")
	if id == "" {
		ctx.String(http.StatusUnauthorized, ErrUnauthenticatedStr)
		return
	}

	profile, err := ah.authService.Profile(ctx.Request.Context(), id)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrUserNotFound):
			ctx.String(http.StatusNotFound, ErrUserNotFoundStr)
		case errors.Is(err, context.DeadlineExceeded):
			ctx.String(http.StatusGatewayTimeout, ErrServerTimeoutStr)
		default:
			slog.Error("Profile: failed to load profile", "user_id", id, "error", err.Error())
			ctx.String(http.StatusInternalServerError, ErrUnknownStr)
		}
		return
	}

	ctx.JSON(http.StatusOK, profile)
}
