package entity_test

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignatzorin/freelance-escrow/internal/domain/entity"
	"github.com/ignatzorin/freelance-escrow/internal/domain/valueobject"
	"github.com/ignatzorin/freelance-escrow/internal/pkg/apperror"
)

func newAcceptedPair(t *testing.T, bid int64) (*entity.Project, *entity.Application) {
	t.Helper()
	project, err := entity.NewProject(uuid.New(), "Лендинг", "нужен лендинг", 5000, 20000, "usd")
	require.NoError(t, err)
	app, err := entity.NewApplication(project.ID, uuid.New(), bid, "2 недели", "")
	require.NoError(t, err)
	require.NoError(t, app.Accept())
	return project, app
}

func TestNewProject_Validation(t *testing.T) {
	_, err := entity.NewProject(uuid.New(), "  ", "", 0, 10, "USD")
	assert.True(t, apperror.IsValidation(err))

	p, err := entity.NewProject(uuid.New(), "Бот", "", 0, 10, "")
	require.NoError(t, err)
	assert.Equal(t, valueobject.ProjectStatusOpen, p.Status)
	assert.Equal(t, "USD", p.Currency)
}

func TestProject_Edit(t *testing.T) {
	p, err := entity.NewProject(uuid.New(), "Бот", "", 0, 10, "EUR")
	require.NoError(t, err)

	require.NoError(t, p.Edit(" Телеграм-бот ", "с оплатой", 500, 2000, ""))
	assert.Equal(t, "Телеграм-бот", p.Title)
	assert.Equal(t, "с оплатой", p.Description)
	assert.Equal(t, int64(2000), p.Budget.Max.Amount)
	assert.Equal(t, "EUR", p.Currency)

	assert.True(t, apperror.IsValidation(p.Edit("Бот", "", 3000, 2000, "")))
	assert.True(t, apperror.IsValidation(p.Edit("", "", 0, 10, "")))

	require.NoError(t, p.Hire())
	assert.True(t, apperror.IsInvalidState(p.Edit("Бот", "", 0, 10, "")))
}

func TestApplication_AcceptTwice(t *testing.T) {
	_, app := newAcceptedPair(t, 10000)
	err := app.Accept()
	assert.True(t, apperror.IsInvalidState(err))
	assert.True(t, apperror.IsInvalidState(app.Reject()))
}

func TestNewApplication_NonPositiveBid(t *testing.T) {
	_, err := entity.NewApplication(uuid.New(), uuid.New(), 0, "", "")
	assert.True(t, apperror.IsValidation(err))
}

func TestNewApplication_BidAboveMaximum(t *testing.T) {
	_, err := entity.NewApplication(uuid.New(), uuid.New(), valueobject.MaxAmount+1, "", "")
	assert.True(t, apperror.IsValidation(err))

	_, err = entity.NewApplication(uuid.New(), uuid.New(), valueobject.MaxAmount, "", "")
	assert.NoError(t, err)
}

func TestContract_SnapshotsBid(t *testing.T) {
	project, app := newAcceptedPair(t, 12345)
	contract, err := entity.NewContractFromApplication(project, app)
	require.NoError(t, err)

	app.BidAmount = 99999
	assert.Equal(t, int64(12345), contract.Amount)
	assert.Equal(t, project.EmployerID, contract.EmployerID)
	assert.Equal(t, app.FreelancerID, contract.FreelancerID)
	assert.Equal(t, valueobject.ContractStatusPendingPayment, contract.Status)
	assert.Equal(t, "contract_"+contract.ID.String(), contract.GroupKey())
}

func TestContract_RequiresAcceptedApplication(t *testing.T) {
	project, err := entity.NewProject(uuid.New(), "API", "", 0, 100, "USD")
	require.NoError(t, err)
	app, err := entity.NewApplication(project.ID, uuid.New(), 50, "", "")
	require.NoError(t, err)

	_, err = entity.NewContractFromApplication(project, app)
	assert.True(t, apperror.IsInvalidState(err))
}

func TestContract_CompleteBeforeFunding(t *testing.T) {
	project, app := newAcceptedPair(t, 100)
	contract, err := entity.NewContractFromApplication(project, app)
	require.NoError(t, err)

	assert.True(t, apperror.IsInvalidState(contract.Complete()))
	require.NoError(t, contract.MarkInProgress())
	assert.True(t, apperror.IsInvalidState(contract.MarkInProgress()))
	require.NoError(t, contract.Complete())
	assert.True(t, apperror.IsInvalidState(contract.Cancel()))
}

func TestPayment_Lifecycle(t *testing.T) {
	project, app := newAcceptedPair(t, 10000)
	contract, err := entity.NewContractFromApplication(project, app)
	require.NoError(t, err)

	commission, err := valueobject.NewCommission(500)
	require.NoError(t, err)
	payment := entity.NewPayment(contract, "sandbox", commission)
	assert.Equal(t, int64(500), payment.Commission)
	assert.Equal(t, valueobject.PaymentStatusInitiated, payment.Status)

	assert.True(t, apperror.IsInvalidState(payment.MarkReleased("tr_1")))
	assert.True(t, apperror.IsValidation(payment.MarkEscrowed("")))
	require.NoError(t, payment.MarkEscrowed("hold_1"))
	require.NoError(t, payment.MarkReleased("tr_1"))
	require.NotNil(t, payment.NetAmount)
	assert.Equal(t, int64(9500), *payment.NetAmount)
	assert.True(t, apperror.IsInvalidState(payment.MarkRefunded("re_1")))
}

func TestPayoutAccount_SetReady(t *testing.T) {
	acc := entity.NewPayoutAccount(uuid.New(), "sandbox", "acct_1")
	assert.False(t, acc.Ready)
	assert.True(t, acc.SetReady(true))
	assert.False(t, acc.SetReady(true))
}
