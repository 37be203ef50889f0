package services

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/javajoker/dealflow-backend/internal/apperrors"
	"github.com/javajoker/dealflow-backend/internal/models"
)

type memFiles struct {
	mu    sync.Mutex
	files map[string][]byte
	fail  bool
}

func newMemFiles() *memFiles {
	return &memFiles{files: make(map[string][]byte)}
}

func (m *memFiles) Save(_ context.Context, key, _ string, data []byte) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return "", errors.New("disk full")
	}
	m.files[key] = data
	return "mem://" + key, nil
}

func (m *memFiles) Load(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.files[key]
	if !ok {
		return nil, errors.New("not found")
	}
	return data, nil
}

func (m *memFiles) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.files, key)
	return nil
}

func newTestContractManager(t *testing.T) (*ContractManager, *memFiles) {
	t.Helper()
	files := newMemFiles()
	store, err := NewHTMLContractStore(files)
	require.NoError(t, err)
	log := logrus.New()
	log.SetOutput(io.Discard)
	return NewContractManager(store, files, nil, "usd", log), files
}

func contractDeal() *models.Deal {
	investor := uuid.New()
	deal := &models.Deal{
		Title:                    "Ceramic mugs",
		Description:              "Hand thrown <b>batch</b>",
		AuthorID:                 uuid.New(),
		InvestorID:               &investor,
		OfferMoney:               10000,
		OfferDealPercent:         20,
		PlatformFeePercent:       1,
		ManufacturingCostPerUnit: 20,
		EstimatedPrice:           50,
		DurationInMonths:         12,
		ContractVersion:          1,
	}
	deal.ID = uuid.New()
	return deal
}

func TestContractGenerateAndVerify(t *testing.T) {
	cm, files := newTestContractManager(t)
	deal := contractDeal()
	at := time.Date(2026, 3, 2, 9, 0, 0, 500, time.UTC)

	require.NoError(t, cm.Generate(context.Background(), deal, models.ContractTypeInitial, at))
	assert.True(t, deal.HasContract())
	assert.Equal(t, "mem://"+contractKey(deal.ID, 1), deal.ContractDocumentURL)
	assert.Len(t, deal.ContractHash, 64)
	assert.Equal(t, at.Truncate(time.Second), *deal.ContractGeneratedAt)

	html := string(files.files[contractKey(deal.ID, 1)])
	assert.Contains(t, html, "Ceramic mugs")
	assert.Contains(t, html, "10000.00")
	assert.NotContains(t, html, "<b>batch</b>")

	check, err := cm.Verify(deal)
	require.NoError(t, err)
	assert.True(t, check.Valid)

	deal.OfferDealPercent = 25
	check, err = cm.Verify(deal)
	require.NoError(t, err)
	assert.False(t, check.Valid)
	assert.NotEqual(t, check.StoredHash, check.ComputedHash)
}

func TestContractVerifyWithoutDocument(t *testing.T) {
	cm, _ := newTestContractManager(t)
	_, err := cm.Verify(contractDeal())
	assert.True(t, apperrors.IsKind(err, apperrors.KindInvalidState))
}

func TestContractAmendBeforeFirstRenderOnlyBumpsVersion(t *testing.T) {
	cm, files := newTestContractManager(t)
	deal := contractDeal()

	require.NoError(t, cm.Amend(context.Background(), deal, models.ContractTypeAmendment, time.Now()))
	assert.Equal(t, 2, deal.ContractVersion)
	assert.False(t, deal.HasContract())
	assert.Empty(t, files.files)
}

func TestContractAmendRetiresPreviousDocument(t *testing.T) {
	cm, files := newTestContractManager(t)
	deal := contractDeal()
	ctx := context.Background()
	require.NoError(t, cm.Generate(ctx, deal, models.ContractTypeInitial, time.Now()))
	first, firstHash := deal.ContractDocumentURL, deal.ContractHash

	deal.OfferMoney = 12000
	require.NoError(t, cm.Amend(ctx, deal, models.ContractTypeAmendment, time.Now()))
	assert.Equal(t, 2, deal.ContractVersion)
	assert.Equal(t, first, deal.PreviousContractDocumentURL)
	assert.Equal(t, models.ContractTypeAmendment, deal.ContractType)
	assert.NotEqual(t, firstHash, deal.ContractHash)
	assert.Len(t, files.files, 2)

	cm.RemoveDocuments(ctx, deal)
	assert.Empty(t, files.files)
}

func TestContractAmendRenderFailureLeavesDocumentPending(t *testing.T) {
	cm, files := newTestContractManager(t)
	deal := contractDeal()
	require.NoError(t, cm.Generate(context.Background(), deal, models.ContractTypeInitial, time.Now()))

	files.fail = true
	err := cm.Amend(context.Background(), deal, models.ContractTypeAmendment, time.Now())
	assert.Error(t, err)
	assert.Equal(t, 2, deal.ContractVersion)
	assert.False(t, deal.HasContract())
	assert.NotEmpty(t, deal.PreviousContractDocumentURL)
}

func TestContractAmendDropsSignaturesBeforeActivation(t *testing.T) {
	cm, _ := newTestContractManager(t)
	ctx := context.Background()
	signedAt := time.Now()

	pending := contractDeal()
	pending.Status = models.DealStatusAdminApproved
	pending.IsOwnerSigned, pending.OwnerSignedAt = true, &signedAt
	pending.IsInvestorSigned, pending.InvestorSignedAt = true, &signedAt
	require.NoError(t, cm.Amend(ctx, pending, models.ContractTypeAmendment, time.Now()))
	assert.False(t, pending.IsOwnerSigned)
	assert.Nil(t, pending.OwnerSignedAt)
	assert.False(t, pending.IsInvestorSigned)
	assert.Nil(t, pending.InvestorSignedAt)

	active := contractDeal()
	active.Status = models.DealStatusActive
	active.IsOwnerSigned, active.IsInvestorSigned = true, true
	require.NoError(t, cm.Amend(ctx, active, models.ContractTypeAmendment, time.Now()))
	assert.True(t, active.IsOwnerSigned)
	assert.True(t, active.IsInvestorSigned)
}

func TestContractRecordSignatureBindsHash(t *testing.T) {
	cm, files := newTestContractManager(t)
	deal := contractDeal()
	require.NoError(t, cm.Generate(context.Background(), deal, models.ContractTypeInitial, time.Now()))

	signer := *deal.InvestorID
	require.NoError(t, cm.RecordSignature(context.Background(), deal, "investor", signer, time.Now()))

	var artifact signatureArtifact
	require.NoError(t, json.Unmarshal(files.files[signatureKey(deal.ID, 1, "investor")], &artifact))
	assert.Equal(t, deal.ContractHash, artifact.ContractHash)
	assert.Equal(t, signer, artifact.SignerID)
}

func TestCanonicalTermsIsStable(t *testing.T) {
	deal := contractDeal()
	at := time.Date(2026, 3, 2, 9, 0, 0, 0, time.FixedZone("X", 3600))

	terms := CanonicalTerms(deal, at)
	assert.Equal(t, terms, CanonicalTerms(deal, at.UTC()))
	assert.True(t, strings.Contains(terms, "offer=10000.00|percent=20.00"))
	assert.True(t, strings.HasSuffix(terms, "at=2026-03-02T08:00:00Z"))
}
