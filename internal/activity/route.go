package activity

// Fixed destinations in the document store. Per-user records live in a
// subcollection under the user's document.
const (
	AuthDestination   = "auth_logs"
	SystemDestination = "system_logs"
)

// UserDestination is the per-user activity subcollection path.
func UserDestination(userID string) string {
	return "users/" + userID + "/activity_logs"
}

// destinationClass collapses destination paths into a bounded label set
// for metrics and tracing.
func destinationClass(path string) string {
	switch path {
	case AuthDestination:
		return "auth"
	case SystemDestination:
		return "system"
	default:
		return "user"
	}
}

// Route maps a record kind and the acting-user identifier (possibly empty)
// to exactly one destination. Auth and system kinds route to their fixed
// collections regardless of identifier; everything else goes to the user's
// subcollection when an identifier is known and falls back to the system
// collection otherwise.
func Route(kind Kind, userID string) string {
	switch kind {
	case KindLogin, KindLogout:
		return AuthDestination
	case KindSystemError, KindUnauthorized:
		return SystemDestination
	case KindSessionEnd, KindPageView, KindBookSearch, KindFilterChange,
		KindBookView, KindBorrowRequest, KindReturnRequest, KindViewHistory,
		KindTabSwitch, KindInteraction, KindAPICall:
		fallthrough
	default:
		if userID != "" {
			return UserDestination(userID)
		}
		return SystemDestination
	}
}
