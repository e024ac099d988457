package domain

// Order states. The workflow only ever moves orders along a few of these
// edges, but the full machine is enforced so an out-of-band actor cannot be
// pushed through an invalid shortcut.
const (
	OrderStateCreated            = "Created"
	OrderStateDraft              = "Draft"
	OrderStateAddingItems        = "AddingItems"
	OrderStateArrangingPayment   = "ArrangingPayment"
	OrderStatePaymentAuthorized  = "PaymentAuthorized"
	OrderStatePaymentSettled     = "PaymentSettled"
	OrderStatePartiallyDelivered = "PartiallyDelivered"
	OrderStateDelivered          = "Delivered"
	OrderStateCancelled          = "Cancelled"
)

// ReconcilableStates are the still-open or paid-but-unfulfilled states a
// deleted product is reconciled out of. Terminal orders are left untouched.
var ReconcilableStates = []string{
	OrderStateCreated,
	OrderStateDraft,
	OrderStateAddingItems,
	OrderStateArrangingPayment,
	OrderStatePaymentAuthorized,
	OrderStatePaymentSettled,
}

var transitions = map[string][]string{
	OrderStateCreated:            {OrderStateAddingItems, OrderStateCancelled},
	OrderStateDraft:              {OrderStateAddingItems, OrderStateCancelled},
	OrderStateAddingItems:        {OrderStateArrangingPayment, OrderStateCancelled},
	OrderStateArrangingPayment:   {OrderStateAddingItems, OrderStatePaymentAuthorized, OrderStatePaymentSettled, OrderStateCancelled},
	OrderStatePaymentAuthorized:  {OrderStatePaymentSettled, OrderStateCancelled},
	OrderStatePaymentSettled:     {OrderStatePartiallyDelivered, OrderStateDelivered, OrderStateCancelled},
	OrderStatePartiallyDelivered: {OrderStateDelivered, OrderStateCancelled},
	OrderStateDelivered:          {},
	OrderStateCancelled:          {},
}

func CanTransition(from, to string) bool {
	for _, t := range transitions[from] {
		if t == to {
			return true
		}
	}
	return false
}

// LineRemovalStates are the states in which order contents may be edited
// directly. Anywhere else removal must go through cancellation.
var LineRemovalStates = []string{
	OrderStateCreated,
	OrderStateDraft,
	OrderStateAddingItems,
}

func CanRemoveLines(state string) bool {
	for _, s := range LineRemovalStates {
		if s == state {
			return true
		}
	}
	return false
}
