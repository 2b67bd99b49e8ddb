package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/cosmarket/points/models"
)

func TestRedeemCreditsInviteeAndInviter(t *testing.T) {
	db := newTestDB(t)
	ledger := NewLedgerService(db)
	svc := NewInviteService(db, ledger)

	inviter := newTestAccount(t, db, "inviter@example.com", 0)
	invitee := newTestAccount(t, db, "invitee@example.com", 0)

	code, err := svc.CreateCode(inviter.ID, 5, 10, 30, nil)
	require.NoError(t, err)
	require.Len(t, code.Code, 8)

	result, err := svc.Redeem(code.Code, invitee.ID)
	require.NoError(t, err)
	require.Equal(t, int64(30), result.InviteeAwarded)
	require.Equal(t, int64(10), result.InviterAwarded)
	require.Equal(t, int64(30), result.Balance)

	inviterBalance, err := ledger.GetBalance(inviter.ID)
	require.NoError(t, err)
	require.Equal(t, int64(10), inviterBalance)

	var ic models.InviteCode
	require.NoError(t, db.First(&ic, code.ID).Error)
	require.Equal(t, 1, ic.UsedCount)
}

func TestRedeemOncePerAccount(t *testing.T) {
	db := newTestDB(t)
	svc := NewInviteService(db, NewLedgerService(db))

	inviter := newTestAccount(t, db, "inviter@example.com", 0)
	invitee := newTestAccount(t, db, "invitee@example.com", 0)

	first, err := svc.CreateCode(inviter.ID, 0, 0, 10, nil)
	require.NoError(t, err)
	second, err := svc.CreateCode(inviter.ID, 0, 0, 10, nil)
	require.NoError(t, err)

	_, err = svc.Redeem(first.Code, invitee.ID)
	require.NoError(t, err)

	// Neither the same code nor a different one works twice.
	_, err = svc.Redeem(first.Code, invitee.ID)
	require.ErrorIs(t, err, ErrAlreadyRedeemed)
	_, err = svc.Redeem(second.Code, invitee.ID)
	require.ErrorIs(t, err, ErrAlreadyRedeemed)
}

func TestRedeemExhaustedAndExpiredCodes(t *testing.T) {
	db := newTestDB(t)
	svc := NewInviteService(db, NewLedgerService(db))

	inviter := newTestAccount(t, db, "inviter@example.com", 0)
	a := newTestAccount(t, db, "a@example.com", 0)
	b := newTestAccount(t, db, "b@example.com", 0)

	limited, err := svc.CreateCode(inviter.ID, 1, 0, 10, nil)
	require.NoError(t, err)
	_, err = svc.Redeem(limited.Code, a.ID)
	require.NoError(t, err)
	_, err = svc.Redeem(limited.Code, b.ID)
	require.ErrorIs(t, err, ErrInviteCodeExhausted)

	past := time.Now().Add(-time.Hour)
	expired, err := svc.CreateCode(inviter.ID, 0, 0, 10, &past)
	require.NoError(t, err)
	_, err = svc.Redeem(expired.Code, b.ID)
	require.ErrorIs(t, err, ErrInviteCodeExhausted)

	_, err = svc.Redeem("NOSUCHCODE", b.ID)
	require.ErrorIs(t, err, ErrInviteCodeNotFound)
}

func TestRedeemFailureLeavesNoPartialCredit(t *testing.T) {
	db := newTestDB(t)
	ledger := NewLedgerService(db)
	svc := NewInviteService(db, ledger)

	inviter := newTestAccount(t, db, "inviter@example.com", 0)
	code, err := svc.CreateCode(inviter.ID, 0, 10, 30, nil)
	require.NoError(t, err)

	// Unknown invitee: the whole transaction rolls back, including the
	// inviter's reward and the use count.
	_, err = svc.Redeem(code.Code, 9999)
	require.ErrorIs(t, err, ErrAccountNotFound)

	balance, err := ledger.GetBalance(inviter.ID)
	require.NoError(t, err)
	require.Zero(t, balance)

	var ic models.InviteCode
	require.NoError(t, db.First(&ic, code.ID).Error)
	require.Zero(t, ic.UsedCount)
}

func TestGrantRegistrationBonus(t *testing.T) {
	db := newTestDB(t)
	ledger := NewLedgerService(db)
	svc := NewInviteService(db, ledger)
	acc := newTestAccount(t, db, "new@example.com", 0)

	require.NoError(t, svc.GrantRegistrationBonus(acc.ID, 20))

	balance, err := ledger.GetBalance(acc.ID)
	require.NoError(t, err)
	require.Equal(t, int64(20), balance)

	// Zero-configured bonus is a no-op, not an error.
	require.NoError(t, svc.GrantRegistrationBonus(acc.ID, 0))
}
