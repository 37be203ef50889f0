// internal/services/contract_manager.go
package services

import (
	"bytes"
	"context"
	"embed"
	"encoding/json"
	"fmt"
	"html/template"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/javajoker/dealflow-backend/internal/apperrors"
	"github.com/javajoker/dealflow-backend/internal/models"
	"github.com/javajoker/dealflow-backend/internal/repository"
	"github.com/javajoker/dealflow-backend/internal/utils"
)

//go:embed templates/contract.html
var contractTemplates embed.FS

// ContractDocument is everything a renderer needs for one contract version.
type ContractDocument struct {
	DealID                   uuid.UUID
	Version                  int
	Type                     models.ContractType
	GeneratedAt              string
	PreviousURL              string
	OwnerID                  uuid.UUID
	OwnerName                string
	InvestorID               string
	InvestorName             string
	Title                    string
	Description              string
	OfferMoney               string
	OfferDealPercent         string
	PlatformFeePercent       string
	ManufacturingCostPerUnit string
	EstimatedPrice           string
	DurationInMonths         int
	Currency                 string
	Hash                     string
}

// ContractStore renders contract documents and fingerprints their terms.
type ContractStore interface {
	Render(ctx context.Context, doc ContractDocument) (string, error)
	Hash(canonical string) string
}

// HTMLContractStore renders contracts from an embedded template into a FileStore.
type HTMLContractStore struct {
	files FileStore
	tmpl  *template.Template
}

func NewHTMLContractStore(files FileStore) (*HTMLContractStore, error) {
	tmpl, err := template.ParseFS(contractTemplates, "templates/contract.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse contract template: %w", err)
	}
	return &HTMLContractStore{files: files, tmpl: tmpl}, nil
}

func (s *HTMLContractStore) Render(ctx context.Context, doc ContractDocument) (string, error) {
	var buf bytes.Buffer
	if err := s.tmpl.Execute(&buf, doc); err != nil {
		return "", fmt.Errorf("failed to render contract: %w", err)
	}
	return s.files.Save(ctx, contractKey(doc.DealID, doc.Version), "text/html; charset=utf-8", buf.Bytes())
}

func (s *HTMLContractStore) Hash(canonical string) string {
	return utils.Sha3Hex([]byte(canonical))
}

func contractKey(dealID uuid.UUID, version int) string {
	return fmt.Sprintf("contracts/%s/v%d.html", dealID, version)
}

func signatureKey(dealID uuid.UUID, version int, party string) string {
	return fmt.Sprintf("contracts/%s/v%d/signature-%s.json", dealID, version, party)
}

// ContractManager owns contract versioning, hashing and signature bookkeeping on a deal.
type ContractManager struct {
	store    ContractStore
	files    FileStore
	users    *repository.UserRepository
	currency string
	log      *logrus.Logger
}

func NewContractManager(store ContractStore, files FileStore, users *repository.UserRepository, currency string, log *logrus.Logger) *ContractManager {
	return &ContractManager{
		store:    store,
		files:    files,
		users:    users,
		currency: currency,
		log:      log,
	}
}

// WithTx returns a manager whose party lookups run inside tx.
func (m *ContractManager) WithTx(tx *gorm.DB) *ContractManager {
	cp := *m
	if m.users != nil {
		cp.users = m.users.WithTx(tx)
	}
	return &cp
}

// CanonicalTerms is the stable string the contract hash is computed over.
func CanonicalTerms(deal *models.Deal, at time.Time) string {
	investor := ""
	if deal.InvestorID != nil {
		investor = deal.InvestorID.String()
	}
	return fmt.Sprintf(
		"deal=%s|version=%d|author=%s|investor=%s|offer=%s|percent=%s|fee=%s|unit_cost=%s|price=%s|months=%d|at=%s",
		deal.ID,
		deal.ContractVersion,
		deal.AuthorID,
		investor,
		money(deal.OfferMoney),
		money(deal.OfferDealPercent),
		money(deal.PlatformFeePercent),
		money(deal.ManufacturingCostPerUnit),
		money(deal.EstimatedPrice),
		deal.DurationInMonths,
		at.UTC().Format(time.RFC3339),
	)
}

func money(v float64) string {
	return strconv.FormatFloat(RoundMoney(v), 'f', 2, 64)
}

// Generate renders the document for the deal's current version. The version is not changed.
func (m *ContractManager) Generate(ctx context.Context, deal *models.Deal, ctype models.ContractType, at time.Time) error {
	at = at.UTC().Truncate(time.Second)
	hash := m.store.Hash(CanonicalTerms(deal, at))

	doc := m.document(ctx, deal, ctype, at, hash)
	url, err := m.store.Render(ctx, doc)
	if err != nil {
		return err
	}

	deal.ContractDocumentURL = url
	deal.ContractHash = hash
	deal.ContractType = ctype
	deal.ContractGeneratedAt = &at

	m.log.WithFields(logrus.Fields{
		"deal_id": deal.ID,
		"version": deal.ContractVersion,
		"type":    ctype,
	}).Info("Contract generated")
	return nil
}

// Amend moves to the next contract version. When a document exists it is
// retired to PreviousContractDocumentURL and a new one is rendered; a render
// failure leaves the deal on the new version with the document pending.
// Signatures collected before activation belong to the old version and are
// dropped, so both parties sign again.
func (m *ContractManager) Amend(ctx context.Context, deal *models.Deal, ctype models.ContractType, at time.Time) error {
	hadContract := deal.HasContract()

	deal.PreviousContractDocumentURL = deal.ContractDocumentURL
	deal.ContractVersion++
	deal.ContractDocumentURL = ""
	deal.ContractHash = ""
	deal.ContractType = ctype
	if deal.Status != models.DealStatusActive {
		clearSignatures(deal)
	}

	if !hadContract {
		return nil
	}
	if err := m.Generate(ctx, deal, ctype, at); err != nil {
		m.log.WithError(err).WithField("deal_id", deal.ID).Error("Amended contract could not be rendered")
		return err
	}
	return nil
}

func clearSignatures(deal *models.Deal) {
	deal.IsOwnerSigned = false
	deal.OwnerSignedAt = nil
	deal.IsInvestorSigned = false
	deal.InvestorSignedAt = nil
}

type ContractVerification struct {
	DealID       uuid.UUID `json:"deal_id"`
	Version      int       `json:"version"`
	DocumentURL  string    `json:"document_url"`
	StoredHash   string    `json:"stored_hash"`
	ComputedHash string    `json:"computed_hash"`
	Valid        bool      `json:"valid"`
}

// Verify recomputes the hash from the deal's current terms and compares it with the stored one.
func (m *ContractManager) Verify(deal *models.Deal) (*ContractVerification, error) {
	if !deal.HasContract() || deal.ContractGeneratedAt == nil {
		return nil, apperrors.InvalidState("deal has no contract")
	}
	computed := m.store.Hash(CanonicalTerms(deal, *deal.ContractGeneratedAt))
	return &ContractVerification{
		DealID:       deal.ID,
		Version:      deal.ContractVersion,
		DocumentURL:  deal.ContractDocumentURL,
		StoredHash:   deal.ContractHash,
		ComputedHash: computed,
		Valid:        computed == deal.ContractHash,
	}, nil
}

type signatureArtifact struct {
	DealID       uuid.UUID `json:"deal_id"`
	Version      int       `json:"version"`
	ContractHash string    `json:"contract_hash"`
	Party        string    `json:"party"`
	SignerID     uuid.UUID `json:"signer_id"`
	SignedAt     time.Time `json:"signed_at"`
}

// RecordSignature stores a signature artifact bound to the current contract hash.
func (m *ContractManager) RecordSignature(ctx context.Context, deal *models.Deal, party string, signerID uuid.UUID, at time.Time) error {
	data, err := json.Marshal(signatureArtifact{
		DealID:       deal.ID,
		Version:      deal.ContractVersion,
		ContractHash: deal.ContractHash,
		Party:        party,
		SignerID:     signerID,
		SignedAt:     at.UTC(),
	})
	if err != nil {
		return apperrors.Internal(err, "failed to encode signature")
	}
	if _, err := m.files.Save(ctx, signatureKey(deal.ID, deal.ContractVersion, party), "application/json", data); err != nil {
		return apperrors.Internal(err, "failed to store signature")
	}
	return nil
}

// RemoveDocuments deletes every stored contract version of a deal.
func (m *ContractManager) RemoveDocuments(ctx context.Context, deal *models.Deal) {
	for v := 1; v <= deal.ContractVersion; v++ {
		if err := m.files.Delete(ctx, contractKey(deal.ID, v)); err != nil {
			m.log.WithError(err).WithField("deal_id", deal.ID).Warn("Failed to delete contract document")
		}
	}
}

func (m *ContractManager) document(ctx context.Context, deal *models.Deal, ctype models.ContractType, at time.Time, hash string) ContractDocument {
	doc := ContractDocument{
		DealID:                   deal.ID,
		Version:                  deal.ContractVersion,
		Type:                     ctype,
		GeneratedAt:              at.Format(time.RFC1123),
		PreviousURL:              deal.PreviousContractDocumentURL,
		OwnerID:                  deal.AuthorID,
		OwnerName:                m.displayName(ctx, deal.AuthorID),
		Title:                    deal.Title,
		Description:              deal.Description,
		OfferMoney:               money(deal.OfferMoney),
		OfferDealPercent:         money(deal.OfferDealPercent),
		PlatformFeePercent:       money(deal.PlatformFeePercent),
		ManufacturingCostPerUnit: money(deal.ManufacturingCostPerUnit),
		EstimatedPrice:           money(deal.EstimatedPrice),
		DurationInMonths:         deal.DurationInMonths,
		Currency:                 m.currency,
		Hash:                     hash,
	}
	if deal.InvestorID != nil {
		doc.InvestorID = deal.InvestorID.String()
		doc.InvestorName = m.displayName(ctx, *deal.InvestorID)
	}
	return doc
}

func (m *ContractManager) displayName(ctx context.Context, id uuid.UUID) string {
	if m.users == nil {
		return id.String()
	}
	user, err := m.users.FindByID(ctx, id)
	if err != nil || user.DisplayName == "" {
		return id.String()
	}
	return user.DisplayName
}
