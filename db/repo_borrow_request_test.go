package db

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"equipment_lending/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func availableOf(t *testing.T, r *Repo, id uint) int {
	t.Helper()
	eq, err := r.FindEquipmentByID(context.Background(), id)
	require.NoError(t, err)
	return eq.AvailableQuantity
}

func TestBorrowLifecycle_ApproveThenReturn(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	u := seedUser(t, r, "a@example.com")
	eq := seedEquipment(t, r, 5, 5)

	req, err := r.CreateBorrowRequest(ctx, eq.ID, u.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, req.Status)
	assert.False(t, req.RequestDate.IsZero())
	require.NotNil(t, req.Equipment)
	require.NotNil(t, req.User)
	assert.Equal(t, "Projector", req.Equipment.Name)
	assert.Equal(t, 4, availableOf(t, r, eq.ID))

	req, err = r.ApproveBorrowRequest(ctx, req.ID, "ok")
	require.NoError(t, err)
	assert.Equal(t, models.StatusApproved, req.Status)
	assert.Equal(t, "ok", req.AdminRemarks)
	assert.Equal(t, 4, availableOf(t, r, eq.ID))

	req, err = r.MarkReturned(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusReturned, req.Status)
	assert.Equal(t, "ok", req.AdminRemarks)
	assert.Equal(t, 5, availableOf(t, r, eq.ID))
}

func TestCreateBorrowRequest_Unavailable(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	u := seedUser(t, r, "a@example.com")
	eq := seedEquipment(t, r, 2, 0)

	_, err := r.CreateBorrowRequest(ctx, eq.ID, u.ID)
	require.ErrorIs(t, err, ErrEquipmentUnavailable)
	require.ErrorIs(t, err, ErrConflict)
	assert.Equal(t, 0, availableOf(t, r, eq.ID))

	reqs, err := r.ListBorrowRequests(ctx, BorrowRequestQuery{})
	require.NoError(t, err)
	assert.Empty(t, reqs)
}

func TestCreateBorrowRequest_MissingReferences(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	u := seedUser(t, r, "a@example.com")
	eq := seedEquipment(t, r, 1, 1)

	_, err := r.CreateBorrowRequest(ctx, 999, u.ID)
	require.ErrorIs(t, err, ErrEquipmentNotFound)

	_, err = r.CreateBorrowRequest(ctx, eq.ID, 999)
	require.ErrorIs(t, err, ErrUserNotFound)
	assert.Equal(t, 1, availableOf(t, r, eq.ID))
}

func TestCreateBorrowRequest_DuplicateActive(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	u := seedUser(t, r, "a@example.com")
	other := seedUser(t, r, "b@example.com")
	eq := seedEquipment(t, r, 3, 3)

	first, err := r.CreateBorrowRequest(ctx, eq.ID, u.ID)
	require.NoError(t, err)

	_, err = r.CreateBorrowRequest(ctx, eq.ID, u.ID)
	require.ErrorIs(t, err, ErrDuplicateActiveRequest)
	assert.Equal(t, 2, availableOf(t, r, eq.ID))

	// 审批后仍算活动申请
	_, err = r.ApproveBorrowRequest(ctx, first.ID, "")
	require.NoError(t, err)
	_, err = r.CreateBorrowRequest(ctx, eq.ID, u.ID)
	require.ErrorIs(t, err, ErrDuplicateActiveRequest)

	// another user is unaffected
	_, err = r.CreateBorrowRequest(ctx, eq.ID, other.ID)
	require.NoError(t, err)

	// once the first request is closed the user may borrow again
	_, err = r.MarkReturned(ctx, first.ID)
	require.NoError(t, err)
	_, err = r.CreateBorrowRequest(ctx, eq.ID, u.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, availableOf(t, r, eq.ID))
}

func TestRejectBorrowRequest_RefundsHold(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	u := seedUser(t, r, "a@example.com")
	eq := seedEquipment(t, r, 2, 2)

	req, err := r.CreateBorrowRequest(ctx, eq.ID, u.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, availableOf(t, r, eq.ID))

	req, err = r.RejectBorrowRequest(ctx, req.ID, "broken lens")
	require.NoError(t, err)
	assert.Equal(t, models.StatusRejected, req.Status)
	assert.Equal(t, "broken lens", req.AdminRemarks)
	assert.Equal(t, 2, availableOf(t, r, eq.ID))
}

func TestRejectApprovedRequest_RefundsHold(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	u := seedUser(t, r, "a@example.com")
	eq := seedEquipment(t, r, 1, 1)

	req, err := r.CreateBorrowRequest(ctx, eq.ID, u.ID)
	require.NoError(t, err)
	_, err = r.ApproveBorrowRequest(ctx, req.ID, "")
	require.NoError(t, err)
	_, err = r.RejectBorrowRequest(ctx, req.ID, "changed mind")
	require.NoError(t, err)
	assert.Equal(t, 1, availableOf(t, r, eq.ID))
}

func TestMarkReturned_ClampedToQuantity(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	u := seedUser(t, r, "a@example.com")
	eq := seedEquipment(t, r, 3, 3)

	req, err := r.CreateBorrowRequest(ctx, eq.ID, u.ID)
	require.NoError(t, err)

	// an admin edit restores full stock while the request is still open
	_, err = r.UpdateEquipment(ctx, eq.ID, models.Equipment{Name: "Projector", Quantity: 3, AvailableQuantity: 3})
	require.NoError(t, err)

	_, err = r.MarkReturned(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, availableOf(t, r, eq.ID))
}

func TestTerminalStates(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	u := seedUser(t, r, "a@example.com")
	eq := seedEquipment(t, r, 2, 2)

	req, err := r.CreateBorrowRequest(ctx, eq.ID, u.ID)
	require.NoError(t, err)
	_, err = r.MarkReturned(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, availableOf(t, r, eq.ID))

	_, err = r.MarkReturned(ctx, req.ID)
	require.ErrorIs(t, err, ErrInvalidTransition)
	_, err = r.ApproveBorrowRequest(ctx, req.ID, "late")
	require.ErrorIs(t, err, ErrInvalidTransition)
	_, err = r.RejectBorrowRequest(ctx, req.ID, "late")
	require.ErrorIs(t, err, ErrConflict)
	assert.Equal(t, 2, availableOf(t, r, eq.ID))

	got, err := r.FindBorrowRequestByID(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusReturned, got.Status)
	assert.Empty(t, got.AdminRemarks)

	rejected, err := r.CreateBorrowRequest(ctx, eq.ID, u.ID)
	require.NoError(t, err)
	_, err = r.RejectBorrowRequest(ctx, rejected.ID, "no")
	require.NoError(t, err)
	_, err = r.ApproveBorrowRequest(ctx, rejected.ID, "yes")
	require.ErrorIs(t, err, ErrInvalidTransition)
	_, err = r.MarkReturned(ctx, rejected.ID)
	require.ErrorIs(t, err, ErrInvalidTransition)
	assert.Equal(t, 2, availableOf(t, r, eq.ID))
}

func TestApproveOnlyFromPending(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	u := seedUser(t, r, "a@example.com")
	eq := seedEquipment(t, r, 1, 1)

	req, err := r.CreateBorrowRequest(ctx, eq.ID, u.ID)
	require.NoError(t, err)
	_, err = r.ApproveBorrowRequest(ctx, req.ID, "first")
	require.NoError(t, err)
	_, err = r.ApproveBorrowRequest(ctx, req.ID, "second")
	require.ErrorIs(t, err, ErrInvalidTransition)

	got, err := r.FindBorrowRequestByID(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, "first", got.AdminRemarks)
}

func TestTransitions_RequestNotFound(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()

	_, err := r.ApproveBorrowRequest(ctx, 7, "")
	require.ErrorIs(t, err, ErrRequestNotFound)
	_, err = r.RejectBorrowRequest(ctx, 7, "")
	require.ErrorIs(t, err, ErrRequestNotFound)
	_, err = r.MarkReturned(ctx, 7)
	require.ErrorIs(t, err, ErrRequestNotFound)
	_, err = r.FindBorrowRequestByID(ctx, 7)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestCreateBorrowRequest_ConcurrentNeverOversells(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	eq := seedEquipment(t, r, 3, 3)

	const borrowers = 10
	users := make([]*models.User, borrowers)
	for i := range users {
		users[i] = seedUser(t, r, fmt.Sprintf("user%d@example.com", i))
	}

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		ok      int
		refused int
	)
	for _, u := range users {
		wg.Add(1)
		go func(uid uint) {
			defer wg.Done()
			_, err := r.CreateBorrowRequest(ctx, eq.ID, uid)
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				ok++
			} else if assert.ErrorIs(t, err, ErrEquipmentUnavailable) {
				refused++
			}
		}(u.ID)
	}
	wg.Wait()

	assert.Equal(t, 3, ok)
	assert.Equal(t, borrowers-3, refused)
	assert.Equal(t, 0, availableOf(t, r, eq.ID))
}

// 在余量检查之后、扣减之前把库存清零，模拟另一笔借用抢先完成
func TestCreateBorrowRequest_LastUnitTakenBeforeDecrement(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	u := seedUser(t, r, "late@example.com")
	eq := seedEquipment(t, r, 1, 1)

	drained := false
	require.NoError(t, r.DB.Callback().Update().Before("gorm:update").Register("test:drain_equipment", func(tx *gorm.DB) {
		if drained || tx.Statement.Table != models.EquipmentTable {
			return
		}
		drained = true
		if err := tx.Session(&gorm.Session{NewDB: true}).
			Exec("UPDATE equipment SET available_quantity = 0 WHERE id = ?", eq.ID).Error; err != nil {
			_ = tx.AddError(err)
		}
	}))

	_, err := r.CreateBorrowRequest(ctx, eq.ID, u.ID)
	require.True(t, drained)
	require.ErrorIs(t, err, ErrEquipmentUnavailable)

	// 整个事务回滚：无新申请
	var n int64
	require.NoError(t, r.DB.Model(&models.BorrowRequest{}).Count(&n).Error)
	assert.Zero(t, n)
}

func TestAvailabilityStaysWithinBounds(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	eq := seedEquipment(t, r, 2, 2)

	var reqs []*models.BorrowRequest
	for i := 0; i < 4; i++ {
		u := seedUser(t, r, fmt.Sprintf("seq%d@example.com", i))
		if req, err := r.CreateBorrowRequest(ctx, eq.ID, u.ID); err == nil {
			reqs = append(reqs, req)
		}
		avail := availableOf(t, r, eq.ID)
		assert.GreaterOrEqual(t, avail, 0)
		assert.LessOrEqual(t, avail, 2)
	}
	require.Len(t, reqs, 2)

	_, err := r.RejectBorrowRequest(ctx, reqs[0].ID, "")
	require.NoError(t, err)
	_, err = r.ApproveBorrowRequest(ctx, reqs[1].ID, "")
	require.NoError(t, err)
	_, err = r.MarkReturned(ctx, reqs[1].ID)
	require.NoError(t, err)
	_, err = r.MarkReturned(ctx, reqs[1].ID)
	require.Error(t, err)
	assert.Equal(t, 2, availableOf(t, r, eq.ID))
}

func TestListBorrowRequests_OrderAndFilters(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	alice := seedUser(t, r, "alice@example.com")
	bob := seedUser(t, r, "bob@example.com")
	eq := seedEquipment(t, r, 10, 10)
	other := seedEquipment(t, r, 10, 10)

	base := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)
	rows := []models.BorrowRequest{
		{EquipmentID: eq.ID, UserID: alice.ID, RequestDate: base, Status: models.StatusReturned},
		{EquipmentID: eq.ID, UserID: bob.ID, RequestDate: base.Add(time.Hour), Status: models.StatusPending},
		{EquipmentID: other.ID, UserID: alice.ID, RequestDate: base.Add(2 * time.Hour), Status: models.StatusPending},
	}
	for i := range rows {
		require.NoError(t, r.DB.Create(&rows[i]).Error)
	}

	all, err := r.ListBorrowRequests(ctx, BorrowRequestQuery{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, rows[2].ID, all[0].ID)
	assert.Equal(t, rows[0].ID, all[2].ID)
	require.NotNil(t, all[0].Equipment)
	assert.Equal(t, other.ID, all[0].Equipment.ID)

	mine, err := r.ListBorrowRequests(ctx, BorrowRequestQuery{UserID: alice.ID})
	require.NoError(t, err)
	require.Len(t, mine, 2)
	assert.Equal(t, rows[2].ID, mine[0].ID)

	pending, err := r.ListBorrowRequests(ctx, BorrowRequestQuery{Status: models.StatusPending, EquipmentID: eq.ID})
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, bob.ID, pending[0].UserID)
}
