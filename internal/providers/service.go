package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/sahilarora/merakart-backend/internal/shipping"
	"github.com/sahilarora/merakart-backend/pkg/db/models"
	"github.com/sahilarora/merakart-backend/pkg/enums"
	pkgerrors "github.com/sahilarora/merakart-backend/pkg/errors"
	"github.com/sahilarora/merakart-backend/pkg/logger"
	"github.com/sahilarora/merakart-backend/pkg/security"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service manages courier provider accounts and hands live adapters to the
// rate aggregator.
type Service interface {
	List(ctx context.Context) ([]models.ShippingProvider, error)
	Get(ctx context.Context, id uuid.UUID) (*models.ShippingProvider, error)
	Connect(ctx context.Context, input ConnectInput) (*models.ShippingProvider, error)
	Disconnect(ctx context.Context, id uuid.UUID, actorID uuid.UUID) (*models.ShippingProvider, error)
	ActiveAdapters(ctx context.Context) ([]shipping.Adapter, error)
	PrimaryAdapter(ctx context.Context) (uuid.UUID, shipping.Adapter, error)
}

// ConnectInput attaches credentials to an existing provider account.
type ConnectInput struct {
	ProviderID  uuid.UUID
	Credentials shipping.Credentials
	ActorID     uuid.UUID
}

type service struct {
	repo     Repository
	tx       txRunner
	cipher   *security.CredentialCipher
	registry *shipping.Registry
	logg     *logger.Logger
}

// NewService builds the provider connection manager.
func NewService(repo Repository, tx txRunner, cipher *security.CredentialCipher, registry *shipping.Registry, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("providers repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if cipher == nil {
		return nil, fmt.Errorf("credential cipher required")
	}
	if registry == nil {
		return nil, fmt.Errorf("adapter registry required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		repo:     repo,
		tx:       tx,
		cipher:   cipher,
		registry: registry,
		logg:     logg,
	}, nil
}

func (s *service) List(ctx context.Context) ([]models.ShippingProvider, error) {
	return s.repo.ListAll(ctx)
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.ShippingProvider, error) {
	provider, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "shipping provider not found")
		}
		return nil, err
	}
	return provider, nil
}

// Connect validates the credential shape for the provider's credential type,
// encrypts the payload and enables the account. Lookup and shape validation
// both happen before any cryptography runs.
func (s *service) Connect(ctx context.Context, input ConnectInput) (*models.ShippingProvider, error) {
	if input.ProviderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "provider id required")
	}

	provider, err := s.Get(ctx, input.ProviderID)
	if err != nil {
		return nil, err
	}

	if err := validateCredentialShape(provider.CredentialType, input.Credentials); err != nil {
		return nil, err
	}
	if !s.registry.Known(provider.Code) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation,
			fmt.Sprintf("no adapter available for provider %q", provider.Code))
	}

	plaintext, err := json.Marshal(input.Credentials)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encoding credentials")
	}
	encrypted, err := s.cipher.Encrypt(plaintext)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encrypting credentials")
	}

	now := time.Now().UTC()
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		current, err := repo.FindByID(ctx, input.ProviderID)
		if err != nil {
			return err
		}
		current.EncryptedCredentials = encrypted
		current.Active = true
		current.DisconnectedAt = nil
		current.LastValidatedAt = &now
		if err := repo.Update(ctx, current); err != nil {
			return err
		}
		provider = current
		return nil
	})
	if err != nil {
		return nil, err
	}

	auditCtx := s.logg.WithFields(ctx, map[string]any{
		"provider_id": provider.ID.String(),
		"provider":    provider.Code,
		"actor_id":    input.ActorID.String(),
	})
	s.logg.Info(auditCtx, "shipping provider connected")
	return provider, nil
}

// Disconnect disables the account and wipes the stored ciphertext. Repeating
// a disconnect is a no-op.
func (s *service) Disconnect(ctx context.Context, id uuid.UUID, actorID uuid.UUID) (*models.ShippingProvider, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "provider id required")
	}

	var provider *models.ShippingProvider
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		current, err := repo.FindByID(ctx, id)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "shipping provider not found")
			}
			return err
		}
		if current.DisconnectedAt != nil {
			provider = current
			return nil
		}
		now := time.Now().UTC()
		current.Active = false
		current.DisconnectedAt = &now
		current.EncryptedCredentials = ""
		if err := repo.Update(ctx, current); err != nil {
			return err
		}
		provider = current
		return nil
	})
	if err != nil {
		return nil, err
	}

	auditCtx := s.logg.WithFields(ctx, map[string]any{
		"provider_id": provider.ID.String(),
		"provider":    provider.Code,
		"actor_id":    actorID.String(),
	})
	s.logg.Info(auditCtx, "shipping provider disconnected")
	return provider, nil
}

// ActiveAdapters decrypts credentials for every enabled account and builds
// adapters in priority order. A corrupted credential record is a hard failure.
func (s *service) ActiveAdapters(ctx context.Context) ([]shipping.Adapter, error) {
	enabled, err := s.repo.ListEnabled(ctx)
	if err != nil {
		return nil, err
	}

	adapters := make([]shipping.Adapter, 0, len(enabled))
	var skipped error
	for _, provider := range enabled {
		if !s.registry.Known(provider.Code) {
			skipped = multierr.Append(skipped, fmt.Errorf("provider %s: no adapter registered", provider.Code))
			continue
		}
		plaintext, err := s.cipher.Decrypt(provider.EncryptedCredentials)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err,
				fmt.Sprintf("decrypting credentials for provider %s", provider.Code))
		}
		var creds shipping.Credentials
		if err := json.Unmarshal(plaintext, &creds); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err,
				fmt.Sprintf("decoding credentials for provider %s", provider.Code))
		}
		adapter, err := s.registry.Build(provider.Code, creds)
		if err != nil {
			skipped = multierr.Append(skipped, fmt.Errorf("provider %s: %w", provider.Code, err))
			continue
		}
		adapters = append(adapters, adapter)
	}

	if skipped != nil {
		s.logg.Warn(ctx, "skipped providers while building adapters: "+skipped.Error())
	}
	return adapters, nil
}

// PrimaryAdapter returns the highest-priority enabled provider that has a
// registered adapter, along with its account id for shipment attribution.
func (s *service) PrimaryAdapter(ctx context.Context) (uuid.UUID, shipping.Adapter, error) {
	enabled, err := s.repo.ListEnabled(ctx)
	if err != nil {
		return uuid.Nil, nil, err
	}
	for _, provider := range enabled {
		if !s.registry.Known(provider.Code) {
			continue
		}
		plaintext, err := s.cipher.Decrypt(provider.EncryptedCredentials)
		if err != nil {
			return uuid.Nil, nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err,
				fmt.Sprintf("decrypting credentials for provider %s", provider.Code))
		}
		var creds shipping.Credentials
		if err := json.Unmarshal(plaintext, &creds); err != nil {
			return uuid.Nil, nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err,
				fmt.Sprintf("decoding credentials for provider %s", provider.Code))
		}
		adapter, err := s.registry.Build(provider.Code, creds)
		if err != nil {
			s.logg.Warn(ctx, fmt.Sprintf("skipping provider %s: %v", provider.Code, err))
			continue
		}
		return provider.ID, adapter, nil
	}
	return uuid.Nil, nil, pkgerrors.New(pkgerrors.CodeDependency, "no shipping provider connected")
}

func validateCredentialShape(credType enums.CredentialType, creds shipping.Credentials) error {
	switch credType {
	case enums.CredentialTypeEmailPassword:
		if creds.Email == "" || creds.Password == "" {
			return pkgerrors.New(pkgerrors.CodeValidation, "email and password are required")
		}
	case enums.CredentialTypeAPIKey:
		if creds.APIKey == "" {
			return pkgerrors.New(pkgerrors.CodeValidation, "api key is required")
		}
	case enums.CredentialTypeOAuthToken:
		if creds.Token == "" {
			return pkgerrors.New(pkgerrors.CodeValidation, "oauth token is required")
		}
	default:
		return pkgerrors.New(pkgerrors.CodeValidation,
			fmt.Sprintf("unsupported credential type %q", credType))
	}
	return nil
}
