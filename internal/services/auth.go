package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"gorm.io/gorm"

	userrepo "github.com/wrenkin/repochat-backend/internal/data/repos/user"
	types "github.com/wrenkin/repochat-backend/internal/domain"
	"github.com/wrenkin/repochat-backend/internal/pkg/apperr"
	"github.com/wrenkin/repochat-backend/internal/pkg/ctxutil"
	"github.com/wrenkin/repochat-backend/internal/pkg/logger"
	ghplatform "github.com/wrenkin/repochat-backend/internal/platform/github"
)

// Claims is the JWT payload. The GitHub token rides in the claims so API
// calls made on the user's behalf need no server-side session.
type Claims struct {
	GithubID    string `json:"github_id"`
	Username    string `json:"username"`
	GithubToken string `json:"github_token"`
	jwt.RegisteredClaims
}

type AuthService interface {
	Login(ctx context.Context, githubToken string) (string, *types.User, error)
	ParseToken(tokenString string) (*Claims, error)
	SetContextFromToken(ctx context.Context, tokenString string) (context.Context, error)
}

type authService struct {
	db        *gorm.DB
	log       *logger.Logger
	userRepo  userrepo.UserRepo
	ghFactory ghplatform.Factory
	jwtSecret string
	tokenTTL  time.Duration
}

func NewAuthService(
	db *gorm.DB,
	baseLog *logger.Logger,
	userRepo userrepo.UserRepo,
	ghFactory ghplatform.Factory,
	jwtSecret string,
	tokenTTL time.Duration,
) AuthService {
	return &authService{
		db:        db,
		log:       baseLog.With("service", "AuthService"),
		userRepo:  userRepo,
		ghFactory: ghFactory,
		jwtSecret: jwtSecret,
		tokenTTL:  tokenTTL,
	}
}

func (as *authService) Login(ctx context.Context, githubToken string) (string, *types.User, error) {
	githubToken = strings.TrimSpace(githubToken)
	if githubToken == "" {
		return "", nil, fmt.Errorf("%w: missing github token", apperr.ErrInvalidArgument)
	}

	account, err := as.ghFactory.ForToken(githubToken).GetAuthenticatedUser(ctx)
	if err != nil {
		return "", nil, fmt.Errorf("resolve github identity: %w", err)
	}

	var user *types.User
	err = as.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		u, uErr := as.upsertAccount(ctx, tx, account, githubToken)
		if uErr != nil {
			return uErr
		}
		user = u
		return nil
	})
	if err != nil {
		return "", nil, err
	}

	token, err := as.signToken(user, githubToken)
	if err != nil {
		return "", nil, fmt.Errorf("sign token: %w", err)
	}
	return token, user, nil
}

// upsertAccount creates the account on first login and refreshes profile
// fields and the stored GitHub credential when they differ.
func (as *authService) upsertAccount(ctx context.Context, tx *gorm.DB, account *ghplatform.Account, githubToken string) (*types.User, error) {
	existing, err := as.userRepo.GetByGithubIDs(ctx, tx, []string{account.GithubID})
	if err != nil {
		return nil, fmt.Errorf("lookup user: %w", err)
	}

	if len(existing) == 0 {
		created, cErr := as.userRepo.Create(ctx, tx, []*types.User{{
			ID:          uuid.New(),
			GithubID:    account.GithubID,
			Username:    account.Username,
			Email:       account.Email,
			AvatarURL:   account.AvatarURL,
			AccessToken: githubToken,
		}})
		if cErr != nil {
			return nil, fmt.Errorf("create user: %w", cErr)
		}
		as.log.Info("New user registered", "github_id", account.GithubID, "username", account.Username)
		return created[0], nil
	}

	user := existing[0]
	if user.AccessToken != githubToken {
		if uErr := as.userRepo.UpdateAccessToken(ctx, tx, user.ID, githubToken); uErr != nil {
			return nil, fmt.Errorf("refresh access token: %w", uErr)
		}
		user.AccessToken = githubToken
	}
	if user.Username != account.Username || user.Email != account.Email || user.AvatarURL != account.AvatarURL {
		if uErr := as.userRepo.UpdateProfile(ctx, tx, user.ID, account.Username, account.Email, account.AvatarURL); uErr != nil {
			return nil, fmt.Errorf("refresh profile: %w", uErr)
		}
		user.Username = account.Username
		user.Email = account.Email
		user.AvatarURL = account.AvatarURL
	}
	return user, nil
}

func (as *authService) signToken(user *types.User, githubToken string) (string, error) {
	now := time.Now().UTC()
	claims := Claims{
		GithubID:    user.GithubID,
		Username:    user.Username,
		GithubToken: githubToken,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(as.tokenTTL)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(as.jwtSecret))
}

func (as *authService) ParseToken(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(as.jwtSecret), nil
	})
	if err != nil || !token.Valid {
		return nil, fmt.Errorf("%w: invalid token", apperr.ErrUnauthorized)
	}
	return claims, nil
}

// SetContextFromToken validates the bearer token, re-syncs the account
// row when the token carries a newer credential, and attaches the request
// identity to the context.
func (as *authService) SetContextFromToken(ctx context.Context, tokenString string) (context.Context, error) {
	claims, err := as.ParseToken(tokenString)
	if err != nil {
		return ctx, err
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return ctx, fmt.Errorf("%w: bad subject", apperr.ErrUnauthorized)
	}

	users, err := as.userRepo.GetByIDs(ctx, nil, []uuid.UUID{userID})
	if err != nil {
		return ctx, fmt.Errorf("lookup user: %w", err)
	}
	if len(users) == 0 {
		return ctx, fmt.Errorf("%w: unknown account", apperr.ErrUnauthorized)
	}

	user := users[0]
	if claims.GithubToken != "" && user.AccessToken != claims.GithubToken {
		if uErr := as.userRepo.UpdateAccessToken(ctx, nil, user.ID, claims.GithubToken); uErr != nil {
			as.log.Warn("Failed to refresh stored github token", "user_id", user.ID, "error", uErr)
		}
	}

	return ctxutil.WithRequestData(ctx, &ctxutil.RequestData{
		TokenString: tokenString,
		UserID:      user.ID,
		GithubID:    claims.GithubID,
		Username:    claims.Username,
		GithubToken: claims.GithubToken,
	}), nil
}
