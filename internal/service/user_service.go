package service

import (
	"context"
	"errors"
	"net/url"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/d60-Lab/socialgraph/internal/apperr"
	"github.com/d60-Lab/socialgraph/internal/clock"
	"github.com/d60-Lab/socialgraph/internal/model"
	"github.com/d60-Lab/socialgraph/internal/repository"
)

var usernameRe = regexp.MustCompile(`^[a-z0-9_]{3,20}$`)

// TokenIssuer 登录成功后签发凭证
type TokenIssuer interface {
	Issue(userID, username string) (string, time.Time, error)
}

type RegisterInput struct {
	Username    string `json:"username" binding:"required,min=3,max=20,handle"`
	Email       string `json:"email" binding:"required,email"`
	Password    string `json:"password" binding:"required,min=6,max=72"`
	DisplayName string `json:"display_name" binding:"max=50"`
}

type LoginInput struct {
	Login    string `json:"login" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type AuthResult struct {
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expires_at"`
	User      *model.User `json:"user"`
}

// Profile 用户主页，FollowStatus 仅在查看者登录且不是本人时有值
type Profile struct {
	*model.User
	FollowStatus *FollowState `json:"follow_status,omitempty"`
}

// NotificationPrefsPatch 通知偏好的部分修改
type NotificationPrefsPatch struct {
	Likes    *bool `json:"likes"`
	Retweets *bool `json:"retweets"`
	Replies  *bool `json:"replies"`
	Follows  *bool `json:"follows"`
	Mentions *bool `json:"mentions"`
	Messages *bool `json:"messages"`
}

// UserPatch 资料修改：每个字段 nil 表示不变
type UserPatch struct {
	DisplayName   *string                 `json:"display_name"`
	Bio           *string                 `json:"bio"`
	Location      *string                 `json:"location"`
	Website       *string                 `json:"website"`
	AvatarURL     *string                 `json:"avatar_url"`
	IsPrivate     *bool                   `json:"is_private"`
	Notifications *NotificationPrefsPatch `json:"notifications"`
}

func checkLen(v *string, max int, field string) error {
	if v != nil && utf8.RuneCountInString(*v) > max {
		return apperr.Invalid(field + " is too long")
	}
	return nil
}

func checkURL(v *string, field string) error {
	if v == nil || *v == "" {
		return nil
	}
	u, err := url.Parse(*v)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return apperr.Invalid(field + " must be an http(s) url")
	}
	return nil
}

// Validate 应用前整体校验
func (p *UserPatch) Validate() error {
	if p.DisplayName != nil && strings.TrimSpace(*p.DisplayName) == "" {
		return apperr.Invalid("display name cannot be empty")
	}
	for _, c := range []struct {
		v     *string
		max   int
		field string
	}{
		{p.DisplayName, 50, "display name"},
		{p.Bio, 160, "bio"},
		{p.Location, 50, "location"},
		{p.Website, 100, "website"},
		{p.AvatarURL, 255, "avatar url"},
	} {
		if err := checkLen(c.v, c.max, c.field); err != nil {
			return err
		}
	}
	if err := checkURL(p.Website, "website"); err != nil {
		return err
	}
	return checkURL(p.AvatarURL, "avatar url")
}

// Columns 转成待更新的列
func (p *UserPatch) Columns() map[string]any {
	cols := map[string]any{}
	set := func(col string, v *string) {
		if v != nil {
			cols[col] = strings.TrimSpace(*v)
		}
	}
	set("display_name", p.DisplayName)
	set("bio", p.Bio)
	set("location", p.Location)
	set("website", p.Website)
	set("avatar_url", p.AvatarURL)
	if p.IsPrivate != nil {
		cols["is_private"] = *p.IsPrivate
	}
	if n := p.Notifications; n != nil {
		for col, v := range map[string]*bool{
			"notify_likes":    n.Likes,
			"notify_retweets": n.Retweets,
			"notify_replies":  n.Replies,
			"notify_follows":  n.Follows,
			"notify_mentions": n.Mentions,
			"notify_messages": n.Messages,
		} {
			if v != nil {
				cols[col] = *v
			}
		}
	}
	return cols
}

// UserService 账号与资料
type UserService interface {
	Register(ctx context.Context, in RegisterInput) (*AuthResult, error)
	Login(ctx context.Context, in LoginInput) (*AuthResult, error)
	GetProfile(ctx context.Context, username, viewerID string) (*Profile, error)
	Get(ctx context.Context, userID string) (*model.User, error)
	UpdateProfile(ctx context.Context, userID string, patch UserPatch) (*model.User, error)
	Deactivate(ctx context.Context, userID string) error
	Reactivate(ctx context.Context, in LoginInput) (*AuthResult, error)
	NotificationSettings(ctx context.Context, userID string) (model.NotificationPrefs, error)
}

type userService struct {
	db     *gorm.DB
	clock  clock.Clock
	tokens TokenIssuer
	graph  RelationshipService
}

func NewUserService(db *gorm.DB, clk clock.Clock, tokens TokenIssuer, graph RelationshipService) UserService {
	return &userService{db: db, clock: clk, tokens: tokens, graph: graph}
}

func (s *userService) Register(ctx context.Context, in RegisterInput) (*AuthResult, error) {
	username := strings.ToLower(strings.TrimSpace(in.Username))
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if !usernameRe.MatchString(username) {
		return nil, apperr.Invalid("username must be 3-20 letters, digits or underscores")
	}
	if len(in.Password) < 6 {
		return nil, apperr.Invalid("password must be at least 6 characters")
	}
	users := repository.NewUserRepository(s.db)
	if _, err := users.GetByUsername(ctx, username); err == nil {
		return nil, apperr.Conflict("username already taken")
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	if _, err := users.GetByEmail(ctx, email); err == nil {
		return nil, apperr.Conflict("email already registered")
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	display := strings.TrimSpace(in.DisplayName)
	if display == "" {
		display = username
	}
	now := s.clock.Now()
	u := &model.User{
		ID:          uuid.New().String(),
		Username:    username,
		Email:       email,
		Password:    string(hash),
		DisplayName: display,
		IsActive:    true,
		Notify:      model.AllNotificationPrefs(),
		LastActive:  now,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := users.Create(ctx, u); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, apperr.Conflict("username or email already taken")
		}
		return nil, err
	}
	return s.issue(u)
}

func (s *userService) Login(ctx context.Context, in LoginInput) (*AuthResult, error) {
	u, err := s.authenticate(ctx, in)
	if err != nil {
		return nil, err
	}
	if !u.Visible() {
		return nil, apperr.InvalidState("account is deactivated or suspended")
	}
	return s.touch(ctx, u, nil)
}

// Reactivate 用密码重新启用已停用账号并登录；被封禁的账号不能自行恢复
func (s *userService) Reactivate(ctx context.Context, in LoginInput) (*AuthResult, error) {
	u, err := s.authenticate(ctx, in)
	if err != nil {
		return nil, err
	}
	if u.IsSuspended {
		return nil, apperr.InvalidState("account is suspended")
	}
	u.IsActive = true
	return s.touch(ctx, u, map[string]any{"is_active": true})
}

// authenticate 用户名或邮箱加密码，失败统一返回 invalid credentials
func (s *userService) authenticate(ctx context.Context, in LoginInput) (*model.User, error) {
	login := strings.ToLower(strings.TrimSpace(in.Login))
	users := repository.NewUserRepository(s.db)
	var (
		u   *model.User
		err error
	)
	if strings.Contains(login, "@") {
		u, err = users.GetByEmail(ctx, login)
	} else {
		u, err = users.GetByUsername(ctx, login)
	}
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.Unauthenticated("invalid credentials")
		}
		return nil, err
	}
	if bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(in.Password)) != nil {
		return nil, apperr.Unauthenticated("invalid credentials")
	}
	return u, nil
}

// touch 刷新 last_active 并签发 token
func (s *userService) touch(ctx context.Context, u *model.User, cols map[string]any) (*AuthResult, error) {
	now := s.clock.Now()
	if cols == nil {
		cols = map[string]any{}
	}
	cols["last_active"] = now
	if err := repository.NewUserRepository(s.db).Update(ctx, u.ID, cols); err != nil {
		return nil, err
	}
	u.LastActive = now
	return s.issue(u)
}

func (s *userService) issue(u *model.User) (*AuthResult, error) {
	tok, exp, err := s.tokens.Issue(u.ID, u.Username)
	if err != nil {
		return nil, err
	}
	return &AuthResult{Token: tok, ExpiresAt: exp, User: u}, nil
}

func (s *userService) GetProfile(ctx context.Context, username, viewerID string) (*Profile, error) {
	u, err := repository.NewUserRepository(s.db).GetByUsername(ctx, strings.ToLower(username))
	if err != nil {
		return nil, apperr.FromStore(err, "user not found")
	}
	if !u.Visible() && u.ID != viewerID {
		return nil, apperr.NotFound("user not found")
	}
	p := &Profile{User: u}
	if viewerID != "" && viewerID != u.ID && s.graph != nil {
		st, err := s.graph.FollowStatus(ctx, viewerID, u.ID)
		if err != nil {
			return nil, err
		}
		p.FollowStatus = st
	}
	return p, nil
}

func (s *userService) Get(ctx context.Context, userID string) (*model.User, error) {
	u, err := repository.NewUserRepository(s.db).Get(ctx, userID)
	if err != nil {
		return nil, apperr.FromStore(err, "user not found")
	}
	return u, nil
}

// UpdateProfile 私密改公开不会自动通过待处理的关注请求
func (s *userService) UpdateProfile(ctx context.Context, userID string, patch UserPatch) (*model.User, error) {
	if err := patch.Validate(); err != nil {
		return nil, err
	}
	cols := patch.Columns()
	if len(cols) == 0 {
		return nil, apperr.Invalid("nothing to update")
	}
	cols["updated_at"] = s.clock.Now()
	users := repository.NewUserRepository(s.db)
	if err := users.Update(ctx, userID, cols); err != nil {
		return nil, apperr.FromStore(err, "user not found")
	}
	u, err := users.Get(ctx, userID)
	return u, apperr.FromStore(err, "user not found")
}

func (s *userService) Deactivate(ctx context.Context, userID string) error {
	err := repository.NewUserRepository(s.db).Update(ctx, userID, map[string]any{
		"is_active":  false,
		"updated_at": s.clock.Now(),
	})
	return apperr.FromStore(err, "user not found")
}

func (s *userService) NotificationSettings(ctx context.Context, userID string) (model.NotificationPrefs, error) {
	u, err := repository.NewUserRepository(s.db).Get(ctx, userID)
	if err != nil {
		return model.NotificationPrefs{}, apperr.FromStore(err, "user not found")
	}
	return u.Notify, nil
}
