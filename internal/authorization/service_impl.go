// Package authorization authenticates operator API keys and checks their role
// against the casbin policy.
package authorization

import (
	"context"
	"crypto/sha256"
	_ "embed"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	gormadapter "github.com/casbin/gorm-adapter/v3"
	"github.com/smallbiznis/audiostore/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

//go:embed model.conf
var modelText string

const (
	ObjectDiscount     = "discount"
	ObjectSubscription = "subscription"
	ObjectPurchase     = "purchase"
	ObjectInvoice      = "invoice"
)

const (
	ActionView   = "view"
	ActionCreate = "create"
	ActionUpdate = "update"
	ActionCharge = "charge"
	ActionRefund = "refund"
	ActionIssue  = "issue"
	ActionCancel = "cancel"
)

const (
	RoleAdmin   = "admin"
	RoleSupport = "support"
	RoleBilling = "billing"
)

var (
	ErrInvalidKeySpec = errors.New("invalid_operator_key_spec")
	ErrUnknownKey     = errors.New("unknown_operator_key")
	ErrForbidden      = errors.New("forbidden")
)

// Operator is the principal behind one configured API key.
type Operator struct {
	Name string
	Role string
}

func (o Operator) Subject() string { return "api_key:" + o.Name }

type Service interface {
	Authenticate(ctx context.Context, rawKey string) (*Operator, error)
	Authorize(ctx context.Context, op Operator, object, action string) error
}

type Params struct {
	fx.In

	Config   config.Config
	Log      *zap.Logger
	Enforcer *casbin.SyncedEnforcer
}

type ServiceImpl struct {
	log      *zap.Logger
	enforcer *casbin.SyncedEnforcer
	keys     map[string]Operator
}

// HashKey is the digest operators put in OPERATOR_API_KEYS instead of the raw key.
func HashKey(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

func NewEnforcer(db *gorm.DB) (*casbin.SyncedEnforcer, error) {
	adapter, err := gormadapter.NewAdapterByDB(db)
	if err != nil {
		return nil, err
	}
	m, err := model.NewModelFromString(modelText)
	if err != nil {
		return nil, err
	}
	enforcer, err := casbin.NewSyncedEnforcer(m, adapter)
	if err != nil {
		return nil, err
	}
	enforcer.EnableAutoSave(true)
	enforcer.EnableAutoBuildRoleLinks(true)
	if err := enforcer.LoadPolicy(); err != nil {
		return nil, err
	}
	if err := seedPolicies(enforcer); err != nil {
		return nil, err
	}
	return enforcer, nil
}

// NewService loads the configured keys and binds each one to its role.
func NewService(p Params) (Service, error) {
	svc := &ServiceImpl{
		log:      p.Log.Named("authorization.service"),
		enforcer: p.Enforcer,
		keys:     make(map[string]Operator, len(p.Config.OperatorKeys)),
	}
	for _, spec := range p.Config.OperatorKeys {
		op, hash, err := parseKeySpec(spec)
		if err != nil {
			return nil, err
		}
		if err := svc.bindRole(op); err != nil {
			return nil, err
		}
		svc.keys[hash] = op
	}
	if len(svc.keys) == 0 {
		svc.log.Warn("no operator keys configured; operator routes will reject every call")
	}
	return svc, nil
}

// parseKeySpec reads "name:role:sha256hex".
func parseKeySpec(spec string) (Operator, string, error) {
	parts := strings.Split(strings.TrimSpace(spec), ":")
	if len(parts) != 3 {
		return Operator{}, "", fmt.Errorf("%w: want name:role:sha256", ErrInvalidKeySpec)
	}
	name := strings.TrimSpace(parts[0])
	role := strings.ToLower(strings.TrimSpace(parts[1]))
	hash := strings.ToLower(strings.TrimSpace(parts[2]))
	if name == "" {
		return Operator{}, "", fmt.Errorf("%w: empty name", ErrInvalidKeySpec)
	}
	switch role {
	case RoleAdmin, RoleSupport, RoleBilling:
	default:
		return Operator{}, "", fmt.Errorf("%w: unknown role %q for %s", ErrInvalidKeySpec, role, name)
	}
	if raw, err := hex.DecodeString(hash); err != nil || len(raw) != sha256.Size {
		return Operator{}, "", fmt.Errorf("%w: %s hash is not sha256 hex", ErrInvalidKeySpec, name)
	}
	return Operator{Name: name, Role: role}, hash, nil
}

// bindRole replaces any stored grouping for the key's subject.
func (s *ServiceImpl) bindRole(op Operator) error {
	subject := op.Subject()
	roleName := "role:" + op.Role

	existing, err := s.enforcer.GetFilteredGroupingPolicy(0, subject)
	if err != nil {
		return err
	}
	for _, rule := range existing {
		if len(rule) < 2 || rule[1] == roleName {
			continue
		}
		if _, err := s.enforcer.RemoveGroupingPolicy(rule[0], rule[1]); err != nil {
			return err
		}
	}

	has, err := s.enforcer.HasGroupingPolicy(subject, roleName)
	if err != nil {
		return err
	}
	if has {
		return nil
	}
	_, err = s.enforcer.AddGroupingPolicy(subject, roleName)
	return err
}

func (s *ServiceImpl) Authenticate(ctx context.Context, rawKey string) (*Operator, error) {
	rawKey = strings.TrimSpace(rawKey)
	if rawKey == "" {
		return nil, ErrUnknownKey
	}
	op, ok := s.keys[HashKey(rawKey)]
	if !ok {
		return nil, ErrUnknownKey
	}
	return &op, nil
}

func (s *ServiceImpl) Authorize(ctx context.Context, op Operator, object, action string) error {
	allowed, err := s.enforcer.Enforce(op.Subject(), object, action)
	if err != nil {
		return err
	}
	if !allowed {
		s.log.Warn("operator action denied",
			zap.String("operator", op.Name),
			zap.String("role", op.Role),
			zap.String("object", object),
			zap.String("action", action),
		)
		return ErrForbidden
	}
	return nil
}

func seedPolicies(enforcer *casbin.SyncedEnforcer) error {
	policies := [][]string{
		// Support reads customer records.
		{"role:support", ObjectDiscount, ActionView},
		{"role:support", ObjectPurchase, ActionView},
		{"role:support", ObjectInvoice, ActionView},

		// Billing is the renewal feed from the payment processor.
		{"role:billing", ObjectSubscription, ActionCreate},
		{"role:billing", ObjectSubscription, ActionUpdate},
		{"role:billing", ObjectSubscription, ActionCharge},
		{"role:billing", ObjectInvoice, ActionIssue},

		{"role:admin", ObjectDiscount, ActionView},
		{"role:admin", ObjectDiscount, ActionCreate},
		{"role:admin", ObjectDiscount, ActionUpdate},
		{"role:admin", ObjectSubscription, ActionCreate},
		{"role:admin", ObjectSubscription, ActionUpdate},
		{"role:admin", ObjectSubscription, ActionCharge},
		{"role:admin", ObjectPurchase, ActionView},
		{"role:admin", ObjectPurchase, ActionRefund},
		{"role:admin", ObjectInvoice, ActionView},
		{"role:admin", ObjectInvoice, ActionIssue},
		{"role:admin", ObjectInvoice, ActionCancel},
	}

	for _, policy := range policies {
		if _, err := enforcer.AddPolicy(policy); err != nil {
			return err
		}
	}
	return nil
}
