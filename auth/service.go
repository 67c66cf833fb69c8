package auth

import (
	"context"
	"fmt"
	"regexp"
	"skillduels/domain"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	minPasswordLength = 8
	maxPasswordLength = 72
	recentMatchLimit  = 10
)

var (
	usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_]{3,20}$`)
	// EVM hex address or a base58 Solana public key
	walletPattern = regexp.MustCompile(`^(0x[0-9a-fA-F]{40}|[1-9A-HJ-NP-Za-km-z]{32,44})$`)
)

type MatchSummary struct {
	RoomCode    string    `json:"roomCode"`
	GameMode    string    `json:"gameMode"`
	Wager       float64   `json:"wager"`
	Status      string    `json:"status"`
	Won         bool      `json:"won"`
	CompletedAt time.Time `json:"completedAt"`
}

type Profile struct {
	Id            string         `json:"id"`
	Username      string         `json:"username"`
	WalletAddress string         `json:"walletAddress,omitempty"`
	TotalMatches  int            `json:"totalMatches"`
	Wins          int            `json:"wins"`
	Losses        int            `json:"losses"`
	TotalEarned   float64        `json:"totalEarned"`
	RecentMatches []MatchSummary `json:"recentMatches"`
}

type service struct {
	userRepo       UserRepo
	history        MatchHistory
	passwordHasher PasswordHasher
	tokenManager   TokenManager
	now            func() time.Time
}

func NewService(userRepo UserRepo, history MatchHistory, passwordHasher PasswordHasher, tokenManager TokenManager) *service {
	return &service{
		userRepo:       userRepo,
		history:        history,
		passwordHasher: passwordHasher,
		tokenManager:   tokenManager,
		now:            time.Now,
	}
}

func (as *service) Signup(ctx context.Context, username, password, walletAddress string) (string, error) {
	if !usernamePattern.MatchString(username) {
		return "", ErrInvalidUsernameFormat
	}

	passwordLen := utf8.RuneCountInString(password)
	if passwordLen < minPasswordLength {
		return "", ErrWeakPassword
	}
	if passwordLen > maxPasswordLength {
		return "", ErrPasswordTooLong
	}

	walletAddress = strings.TrimSpace(walletAddress)
	if walletAddress != "" && !walletPattern.MatchString(walletAddress) {
		return "", ErrInvalidWalletAddress
	}

	passwordHash, err := as.passwordHasher.Hash(password)
	if err != nil {
		return "", err
	}

	id, err := as.userRepo.CreateUser(ctx, username, passwordHash, walletAddress)
	if err != nil {
		return "", err
	}

	return as.GenerateToken(id)
}

func (as *service) Login(ctx context.Context, username, password string) (string, error) {
	user, err := as.userRepo.GetUserByUsername(ctx, username)
	if err != nil {
		return "", err
	}

	match, err := as.passwordHasher.Compare(user.PasswordHash, password)
	if err != nil {
		return "", err
	}
	if !match {
		return "", ErrIncorrectPassword
	}

	return as.GenerateToken(user.Id)
}

// VerifyToken returns the user id if the token is valid.
func (as *service) VerifyToken(token string) (string, error) {
	return as.tokenManager.Verify(token)
}

func (as *service) GenerateToken(id string) (string, error) {
	return as.tokenManager.Generate(id, as.now())
}

// Profile returns the user's public record with their latest matches.
func (as *service) Profile(ctx context.Context, id string) (Profile, error) {
	user, err := as.userRepo.GetUserById(ctx, id)
	if err != nil {
		return Profile{}, err
	}

	records, err := as.history.RecentMatches(ctx, id, recentMatchLimit)
	if err != nil {
		return Profile{}, fmt.Errorf("%w: %w", domain.UnexpectedDatabaseError, err)
	}

	profile := Profile{
		Id:            user.Id,
		Username:      user.Username,
		WalletAddress: user.WalletAddress,
		TotalMatches:  user.TotalMatches,
		Wins:          user.Wins,
		Losses:        user.Losses,
		TotalEarned:   user.TotalEarned,
		RecentMatches: make([]MatchSummary, 0, len(records)),
	}
	for _, rec := range records {
		profile.RecentMatches = append(profile.RecentMatches, MatchSummary{
			RoomCode:    rec.RoomCode,
			GameMode:    rec.GameMode,
			Wager:       rec.Wager,
			Status:      string(rec.Status),
			Won:         rec.WinnerId == id,
			CompletedAt: rec.CompletedAt,
		})
	}
	return profile, nil
}
