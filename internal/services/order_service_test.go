// internal/services/order_service_test.go
package services

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/javajoker/retail-backend/internal/models"
)

type placedOrder struct {
	buyer    *models.User
	operator *models.User
	shopID   uuid.UUID
	listing  models.ProductListing
	order    *models.Order
	key      string
}

// placeOrder submits a basket of two kettles priced 100 each.
func placeOrder(t *testing.T, env *testEnv) placedOrder {
	t.Helper()
	ctx := context.Background()

	operator := env.user(t, models.UserRoleShop)
	buyer := env.user(t, models.UserRoleBuyer)
	report := env.importDoc(t, operator.ID, singleItemPriceList)
	listing := env.listing(t, report.ShopID, 1001)
	env.contact(t, buyer.ID)

	_, err := env.orders.AddToBasket(ctx, buyer.ID, &BasketItemsRequest{
		Items: []BasketItem{{ListingID: listing.ID, Quantity: 2}},
	})
	require.NoError(t, err)

	result, err := env.orders.Submit(ctx, buyer.ID)
	require.NoError(t, err)

	jobs := env.queue.Jobs(JobOrderConfirmationRequest)
	require.NotEmpty(t, jobs)

	return placedOrder{
		buyer:    buyer,
		operator: operator,
		shopID:   report.ShopID,
		listing:  listing,
		order:    result.Order,
		key:      jobs[len(jobs)-1].Payload["key"],
	}
}

func TestGetBasket_EmptyWhenNoneSaved(t *testing.T) {
	env := newTestEnv(t)
	buyer := env.user(t, models.UserRoleBuyer)

	basket, err := env.orders.GetBasket(context.Background(), buyer.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStateBasket, basket.State)
	assert.Empty(t, basket.Lines)
	assert.True(t, basket.TotalSum.IsZero())

	var saved int64
	require.NoError(t, env.db.Model(&models.Order{}).Count(&saved).Error)
	assert.Zero(t, saved)
}

func TestAddToBasket_ComputesTotal(t *testing.T) {
	env := newTestEnv(t)
	operator := env.user(t, models.UserRoleShop)
	buyer := env.user(t, models.UserRoleBuyer)
	report := env.importDoc(t, operator.ID, samplePriceList)

	xr := env.listing(t, report.ShopID, 4216313)
	juicePack := env.listing(t, report.ShopID, 4672670)

	basket, err := env.orders.AddToBasket(context.Background(), buyer.ID, &BasketItemsRequest{
		Items: []BasketItem{
			{ListingID: xr.ID, Quantity: 1},
			{ListingID: juicePack.ID, Quantity: 3},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, models.OrderStateBasket, basket.State)
	assert.Len(t, basket.Lines, 2)
	assert.Equal(t, "65299.97", basket.TotalSum.StringFixed(2))
	for _, line := range basket.Lines {
		require.NotNil(t, line.Listing)
		require.NotNil(t, line.Listing.Product)
		require.NotNil(t, line.Listing.Shop)
		assert.Equal(t, "Svyaznoy", line.Listing.Shop.Name)
	}
}

func TestSingleBasketIndex_RejectsSecondBasket(t *testing.T) {
	env := newTestEnv(t)
	buyer := env.user(t, models.UserRoleBuyer)

	first := models.Order{UserID: buyer.ID, State: models.OrderStateBasket}
	require.NoError(t, env.db.Create(&first).Error)

	second := models.Order{UserID: buyer.ID, State: models.OrderStateBasket}
	err := env.db.Create(&second).Error
	assert.ErrorIs(t, err, gorm.ErrDuplicatedKey)

	// Only baskets are constrained; submitted orders sit beside them.
	submitted := models.Order{UserID: buyer.ID, State: models.OrderStateNew}
	require.NoError(t, env.db.Create(&submitted).Error)

	other := env.user(t, models.UserRoleBuyer)
	require.NoError(t, env.db.Create(&models.Order{UserID: other.ID, State: models.OrderStateBasket}).Error)
}

func TestGetOrCreateBasket_LosingInsertReadsExistingBasket(t *testing.T) {
	env := newTestEnv(t)
	buyer := env.user(t, models.UserRoleBuyer)

	existing := models.Order{UserID: buyer.ID, State: models.OrderStateBasket}
	require.NoError(t, env.db.Create(&existing).Error)

	basket, created, err := getOrCreateBasket(env.db, buyer.ID)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, existing.ID, basket.ID)

	fresh, created, err := getOrCreateBasket(env.db, env.user(t, models.UserRoleBuyer).ID)
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotEqual(t, existing.ID, fresh.ID)

	var baskets int64
	require.NoError(t, env.db.Model(&models.Order{}).
		Where("user_id = ? AND state = ?", buyer.ID, models.OrderStateBasket).
		Count(&baskets).Error)
	assert.EqualValues(t, 1, baskets)
}

func TestAddToBasket_ConcurrentCallsShareOneBasket(t *testing.T) {
	env := newTestEnv(t)
	operator := env.user(t, models.UserRoleShop)
	buyer := env.user(t, models.UserRoleBuyer)
	report := env.importDoc(t, operator.ID, samplePriceList)

	ids := []int64{4216292, 4216313, 4672670}
	var wg sync.WaitGroup
	errs := make([]error, len(ids))
	for i, externalID := range ids {
		listing := env.listing(t, report.ShopID, externalID)
		wg.Add(1)
		go func(i int, listingID uuid.UUID) {
			defer wg.Done()
			_, errs[i] = env.orders.AddToBasket(context.Background(), buyer.ID, &BasketItemsRequest{
				Items: []BasketItem{{ListingID: listingID, Quantity: 1}},
			})
		}(i, listing.ID)
	}
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}

	var baskets int64
	require.NoError(t, env.db.Model(&models.Order{}).
		Where("user_id = ? AND state = ?", buyer.ID, models.OrderStateBasket).
		Count(&baskets).Error)
	assert.EqualValues(t, 1, baskets)

	basket, err := env.orders.GetBasket(context.Background(), buyer.ID)
	require.NoError(t, err)
	assert.Len(t, basket.Lines, 3)
}

func TestAddToBasket_DuplicateLine(t *testing.T) {
	env := newTestEnv(t)
	operator := env.user(t, models.UserRoleShop)
	buyer := env.user(t, models.UserRoleBuyer)
	report := env.importDoc(t, operator.ID, singleItemPriceList)
	listing := env.listing(t, report.ShopID, 1001)

	req := &BasketItemsRequest{Items: []BasketItem{{ListingID: listing.ID, Quantity: 1}}}
	_, err := env.orders.AddToBasket(context.Background(), buyer.ID, req)
	require.NoError(t, err)

	_, err = env.orders.AddToBasket(context.Background(), buyer.ID, req)
	assert.ErrorIs(t, err, ErrDuplicateLineItem)
	assert.ErrorIs(t, err, ErrIntegrityConflict)

	basket, err := env.orders.GetBasket(context.Background(), buyer.ID)
	require.NoError(t, err)
	require.Len(t, basket.Lines, 1)
	assert.Equal(t, 1, basket.Lines[0].Quantity)
}

func TestAddToBasket_Rejections(t *testing.T) {
	env := newTestEnv(t)
	operator := env.user(t, models.UserRoleShop)
	buyer := env.user(t, models.UserRoleBuyer)
	report := env.importDoc(t, operator.ID, singleItemPriceList)
	listing := env.listing(t, report.ShopID, 1001)
	ctx := context.Background()

	_, err := env.orders.AddToBasket(ctx, buyer.ID, &BasketItemsRequest{
		Items: []BasketItem{{ListingID: listing.ID, Quantity: 6}},
	})
	assert.ErrorIs(t, err, ErrInsufficientQuantity)

	_, err = env.orders.AddToBasket(ctx, buyer.ID, &BasketItemsRequest{
		Items: []BasketItem{{ListingID: uuid.New(), Quantity: 1}},
	})
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = env.orders.AddToBasket(ctx, buyer.ID, &BasketItemsRequest{
		Items: []BasketItem{{ListingID: listing.ID, Quantity: 0}},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "validation failed")

	_, err = env.orders.AddToBasket(ctx, operator.ID, &BasketItemsRequest{
		Items: []BasketItem{{ListingID: listing.ID, Quantity: 1}},
	})
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = env.orders.AddToBasket(ctx, uuid.New(), &BasketItemsRequest{
		Items: []BasketItem{{ListingID: listing.ID, Quantity: 1}},
	})
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestAddToBasket_ShopNotAcceptingOrders(t *testing.T) {
	env := newTestEnv(t)
	operator := env.user(t, models.UserRoleShop)
	buyer := env.user(t, models.UserRoleBuyer)
	report := env.importDoc(t, operator.ID, singleItemPriceList)
	listing := env.listing(t, report.ShopID, 1001)

	_, err := env.shops.SetState(context.Background(), operator.ID, false)
	require.NoError(t, err)

	_, err = env.orders.AddToBasket(context.Background(), buyer.ID, &BasketItemsRequest{
		Items: []BasketItem{{ListingID: listing.ID, Quantity: 1}},
	})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAddToBasket_AttachesExistingContact(t *testing.T) {
	env := newTestEnv(t)
	operator := env.user(t, models.UserRoleShop)
	buyer := env.user(t, models.UserRoleBuyer)
	report := env.importDoc(t, operator.ID, singleItemPriceList)
	listing := env.listing(t, report.ShopID, 1001)
	contact := env.contact(t, buyer.ID)

	basket, err := env.orders.AddToBasket(context.Background(), buyer.ID, &BasketItemsRequest{
		Items: []BasketItem{{ListingID: listing.ID, Quantity: 1}},
	})
	require.NoError(t, err)
	require.NotNil(t, basket.ContactID)
	assert.Equal(t, contact.ID, *basket.ContactID)
	require.NotNil(t, basket.Contact)
	assert.Equal(t, "Moscow", basket.Contact.City)
}

func TestUpdateBasket(t *testing.T) {
	env := newTestEnv(t)
	operator := env.user(t, models.UserRoleShop)
	buyer := env.user(t, models.UserRoleBuyer)
	report := env.importDoc(t, operator.ID, singleItemPriceList)
	listing := env.listing(t, report.ShopID, 1001)
	ctx := context.Background()

	_, err := env.orders.UpdateBasket(ctx, buyer.ID, &BasketItemsRequest{
		Items: []BasketItem{{ListingID: listing.ID, Quantity: 2}},
	})
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = env.orders.AddToBasket(ctx, buyer.ID, &BasketItemsRequest{
		Items: []BasketItem{{ListingID: listing.ID, Quantity: 1}},
	})
	require.NoError(t, err)

	basket, err := env.orders.UpdateBasket(ctx, buyer.ID, &BasketItemsRequest{
		Items: []BasketItem{{ListingID: listing.ID, Quantity: 4}},
	})
	require.NoError(t, err)
	require.Len(t, basket.Lines, 1)
	assert.Equal(t, 4, basket.Lines[0].Quantity)
	assert.Equal(t, "400.00", basket.TotalSum.StringFixed(2))

	_, err = env.orders.UpdateBasket(ctx, buyer.ID, &BasketItemsRequest{
		Items: []BasketItem{{ListingID: listing.ID, Quantity: 9}},
	})
	assert.ErrorIs(t, err, ErrInsufficientQuantity)
}

func TestRemoveFromBasket(t *testing.T) {
	env := newTestEnv(t)
	operator := env.user(t, models.UserRoleShop)
	buyer := env.user(t, models.UserRoleBuyer)
	report := env.importDoc(t, operator.ID, samplePriceList)
	xr := env.listing(t, report.ShopID, 4216313)
	juicePack := env.listing(t, report.ShopID, 4672670)
	ctx := context.Background()

	_, err := env.orders.AddToBasket(ctx, buyer.ID, &BasketItemsRequest{
		Items: []BasketItem{{ListingID: xr.ID, Quantity: 1}, {ListingID: juicePack.ID, Quantity: 1}},
	})
	require.NoError(t, err)

	basket, removed, err := env.orders.RemoveFromBasket(ctx, buyer.ID, &BasketRemoveRequest{
		ListingIDs: []uuid.UUID{xr.ID, uuid.New()},
	})
	require.NoError(t, err)
	assert.EqualValues(t, 1, removed)
	require.Len(t, basket.Lines, 1)
	assert.Equal(t, juicePack.ID, basket.Lines[0].ListingID)
}

func TestSubmit_RequiresContact(t *testing.T) {
	env := newTestEnv(t)
	operator := env.user(t, models.UserRoleShop)
	buyer := env.user(t, models.UserRoleBuyer)
	report := env.importDoc(t, operator.ID, singleItemPriceList)
	listing := env.listing(t, report.ShopID, 1001)
	ctx := context.Background()

	_, err := env.orders.AddToBasket(ctx, buyer.ID, &BasketItemsRequest{
		Items: []BasketItem{{ListingID: listing.ID, Quantity: 1}},
	})
	require.NoError(t, err)

	_, err = env.orders.Submit(ctx, buyer.ID)
	assert.ErrorIs(t, err, ErrContactRequired)

	basket, err := env.orders.GetBasket(ctx, buyer.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStateBasket, basket.State)
	assert.NotEqual(t, uuid.Nil, basket.ID)
	assert.Empty(t, env.queue.Jobs(JobOrderConfirmationRequest))

	// Saving a contact attaches it to the waiting basket.
	env.contact(t, buyer.ID)
	result, err := env.orders.Submit(ctx, buyer.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStateNew, result.Order.State)
}

func TestSubmit_EmptyBasket(t *testing.T) {
	env := newTestEnv(t)
	operator := env.user(t, models.UserRoleShop)
	buyer := env.user(t, models.UserRoleBuyer)
	report := env.importDoc(t, operator.ID, singleItemPriceList)
	listing := env.listing(t, report.ShopID, 1001)
	env.contact(t, buyer.ID)
	ctx := context.Background()

	_, err := env.orders.Submit(ctx, buyer.ID)
	assert.ErrorIs(t, err, ErrEmptyBasket)

	_, err = env.orders.AddToBasket(ctx, buyer.ID, &BasketItemsRequest{
		Items: []BasketItem{{ListingID: listing.ID, Quantity: 1}},
	})
	require.NoError(t, err)
	_, _, err = env.orders.RemoveFromBasket(ctx, buyer.ID, &BasketRemoveRequest{ListingIDs: []uuid.UUID{listing.ID}})
	require.NoError(t, err)

	_, err = env.orders.Submit(ctx, buyer.ID)
	assert.ErrorIs(t, err, ErrEmptyBasket)
}

func TestSubmit_StartsFreshBasket(t *testing.T) {
	env := newTestEnv(t)
	placed := placeOrder(t, env)
	ctx := context.Background()

	assert.Equal(t, models.OrderStateNew, placed.order.State)
	assert.Equal(t, "200.00", placed.order.TotalSum.StringFixed(2))
	assert.NotEmpty(t, placed.key)

	_, err := env.orders.AddToBasket(ctx, placed.buyer.ID, &BasketItemsRequest{
		Items: []BasketItem{{ListingID: placed.listing.ID, Quantity: 1}},
	})
	require.NoError(t, err)

	basket, err := env.orders.GetBasket(ctx, placed.buyer.ID)
	require.NoError(t, err)
	assert.NotEqual(t, placed.order.ID, basket.ID)

	orders, err := env.orders.ListBuyerOrders(ctx, placed.buyer.ID)
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, placed.order.ID, orders[0].ID)
}

func TestOrderLifecycle_EndToEnd(t *testing.T) {
	env := newTestEnv(t)
	placed := placeOrder(t, env)
	ctx := context.Background()

	confirmJobs := env.queue.Jobs(JobOrderConfirmationRequest)
	require.Len(t, confirmJobs, 1)
	assert.Equal(t, placed.order.ID.String(), confirmJobs[0].Payload["order_id"])

	require.NoError(t, env.notifications.Handle(ctx, confirmJobs[0]))
	require.Len(t, env.mailer.messages, 1)
	mail := env.mailer.messages[0]
	assert.Equal(t, []string{placed.buyer.Email}, mail.To)
	assert.Contains(t, mail.HTML, "http://shop.test/v1/confirm/order?key="+placed.key)
	assert.Contains(t, mail.HTML, "Steel Kettle")
	assert.Contains(t, mail.HTML, "200.00")

	confirmed, err := env.orders.Confirm(ctx, placed.key)
	require.NoError(t, err)
	assert.True(t, confirmed)

	order, err := env.orders.GetBuyerOrder(ctx, placed.buyer.ID, placed.order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStateConfirmed, order.State)

	var tokens int64
	require.NoError(t, env.db.Model(&models.ConfirmationToken{}).Count(&tokens).Error)
	assert.Zero(t, tokens)

	assert.Len(t, env.queue.Jobs(JobOrderThankYou), 1)
	shopJobs := env.queue.Jobs(JobShopNewOrder)
	require.Len(t, shopJobs, 1)
	assert.Equal(t, placed.shopID.String(), shopJobs[0].Payload["shop_id"])
	statusJobs := env.queue.Jobs(JobOrderStatusUpdate)
	require.Len(t, statusJobs, 1)
	assert.Equal(t, string(models.OrderStateConfirmed), statusJobs[0].Payload["state"])

	require.NoError(t, env.notifications.Handle(ctx, shopJobs[0]))
	shopMail := env.mailer.messages[len(env.mailer.messages)-1]
	assert.Equal(t, []string{placed.operator.Email}, shopMail.To)
	assert.Contains(t, shopMail.Subject, "Corner Store")

	again, err := env.orders.Confirm(ctx, placed.key)
	require.NoError(t, err)
	assert.False(t, again)
	assert.Len(t, env.queue.Jobs(JobOrderThankYou), 1)
}

func TestConfirm_UnknownKey(t *testing.T) {
	env := newTestEnv(t)

	for _, key := range []string{"", "nope"} {
		confirmed, err := env.orders.Confirm(context.Background(), key)
		require.NoError(t, err)
		assert.False(t, confirmed)
	}
}

func TestAdvanceState(t *testing.T) {
	env := newTestEnv(t)
	placed := placeOrder(t, env)
	ctx := context.Background()

	_, err := env.orders.AdvanceState(ctx, placed.operator.ID, placed.order.ID, models.OrderStateConfirmed)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	confirmed, err := env.orders.Confirm(ctx, placed.key)
	require.NoError(t, err)
	require.True(t, confirmed)

	order, err := env.orders.AdvanceState(ctx, placed.operator.ID, placed.order.ID, models.OrderStateAssembled)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStateAssembled, order.State)

	_, err = env.orders.AdvanceState(ctx, placed.operator.ID, placed.order.ID, models.OrderStateDelivered)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	_, err = env.orders.AdvanceState(ctx, placed.operator.ID, placed.order.ID, models.OrderState("lost"))
	assert.ErrorIs(t, err, ErrInvalidTransition)

	_, err = env.orders.AdvanceState(ctx, placed.operator.ID, uuid.New(), models.OrderStateSent)
	assert.ErrorIs(t, err, ErrNotFound)

	states := []string{}
	for _, job := range env.queue.Jobs(JobOrderStatusUpdate) {
		states = append(states, job.Payload["state"])
	}
	assert.Equal(t, []string{"confirmed", "assembled"}, states)
}

func TestAdvanceState_OtherShopsAndRoles(t *testing.T) {
	env := newTestEnv(t)
	placed := placeOrder(t, env)
	ctx := context.Background()

	stranger := env.user(t, models.UserRoleShop)
	env.importDoc(t, stranger.ID, samplePriceList)
	_, err := env.orders.AdvanceState(ctx, stranger.ID, placed.order.ID, models.OrderStateCanceled)
	assert.ErrorIs(t, err, ErrForbidden)

	shopless := env.user(t, models.UserRoleShop)
	_, err = env.orders.AdvanceState(ctx, shopless.ID, placed.order.ID, models.OrderStateCanceled)
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = env.orders.AdvanceState(ctx, placed.buyer.ID, placed.order.ID, models.OrderStateCanceled)
	assert.ErrorIs(t, err, ErrForbidden)

	admin := env.user(t, models.UserRoleAdmin)
	order, err := env.orders.AdvanceState(ctx, admin.ID, placed.order.ID, models.OrderStateCanceled)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStateCanceled, order.State)
}

func TestAdvanceState_CancelRevokesConfirmation(t *testing.T) {
	env := newTestEnv(t)
	placed := placeOrder(t, env)
	ctx := context.Background()

	_, err := env.orders.AdvanceState(ctx, placed.operator.ID, placed.order.ID, models.OrderStateCanceled)
	require.NoError(t, err)

	confirmed, err := env.orders.Confirm(ctx, placed.key)
	require.NoError(t, err)
	assert.False(t, confirmed)

	order, err := env.orders.GetBuyerOrder(ctx, placed.buyer.ID, placed.order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStateCanceled, order.State)
	assert.Empty(t, env.queue.Jobs(JobOrderThankYou))
}

func TestListShopOrders_OnlyOwnLines(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	kettles := env.user(t, models.UserRoleShop)
	phones := env.user(t, models.UserRoleShop)
	buyer := env.user(t, models.UserRoleBuyer)
	kettleShop := env.importDoc(t, kettles.ID, singleItemPriceList)
	phoneShop := env.importDoc(t, phones.ID, samplePriceList)
	env.contact(t, buyer.ID)

	kettle := env.listing(t, kettleShop.ShopID, 1001)
	juicePack := env.listing(t, phoneShop.ShopID, 4672670)
	_, err := env.orders.AddToBasket(ctx, buyer.ID, &BasketItemsRequest{
		Items: []BasketItem{{ListingID: kettle.ID, Quantity: 1}, {ListingID: juicePack.ID, Quantity: 2}},
	})
	require.NoError(t, err)
	result, err := env.orders.Submit(ctx, buyer.ID)
	require.NoError(t, err)
	assert.Equal(t, "299.98", result.Order.TotalSum.StringFixed(2))

	orders, err := env.orders.ListShopOrders(ctx, kettles.ID)
	require.NoError(t, err)
	require.Len(t, orders, 1)
	require.Len(t, orders[0].Lines, 1)
	assert.Equal(t, kettle.ID, orders[0].Lines[0].ListingID)
	assert.Equal(t, "100.00", orders[0].TotalSum.StringFixed(2))

	orders, err = env.orders.ListShopOrders(ctx, phones.ID)
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, "199.98", orders[0].TotalSum.StringFixed(2))

	confirmed, err := env.orders.Confirm(ctx, env.queue.Jobs(JobOrderConfirmationRequest)[0].Payload["key"])
	require.NoError(t, err)
	require.True(t, confirmed)
	assert.Len(t, env.queue.Jobs(JobShopNewOrder), 2)
}

func TestListShopOrders_ExcludesBaskets(t *testing.T) {
	env := newTestEnv(t)
	operator := env.user(t, models.UserRoleShop)
	buyer := env.user(t, models.UserRoleBuyer)
	report := env.importDoc(t, operator.ID, singleItemPriceList)
	listing := env.listing(t, report.ShopID, 1001)

	_, err := env.orders.AddToBasket(context.Background(), buyer.ID, &BasketItemsRequest{
		Items: []BasketItem{{ListingID: listing.ID, Quantity: 1}},
	})
	require.NoError(t, err)

	orders, err := env.orders.ListShopOrders(context.Background(), operator.ID)
	require.NoError(t, err)
	assert.Empty(t, orders)
}

func TestSubmit_ObserverFailureKeepsOrder(t *testing.T) {
	env := newTestEnv(t)
	env.queue.err = assert.AnError
	operator := env.user(t, models.UserRoleShop)
	buyer := env.user(t, models.UserRoleBuyer)
	report := env.importDoc(t, operator.ID, singleItemPriceList)
	listing := env.listing(t, report.ShopID, 1001)
	env.contact(t, buyer.ID)
	ctx := context.Background()

	_, err := env.orders.AddToBasket(ctx, buyer.ID, &BasketItemsRequest{
		Items: []BasketItem{{ListingID: listing.ID, Quantity: 1}},
	})
	require.NoError(t, err)

	result, err := env.orders.Submit(ctx, buyer.ID)
	require.NoError(t, err)
	assert.False(t, result.ConfirmationQueued)
	assert.Equal(t, models.OrderStateNew, result.Order.State)

	var tokens int64
	require.NoError(t, env.db.Model(&models.ConfirmationToken{}).Where("order_id = ?", result.Order.ID).Count(&tokens).Error)
	assert.EqualValues(t, 1, tokens)
}
