package services

// CanAdmit reports whether a mentor holding activeCount uncompleted ACTIVE connections
// can take on another mentee. A non-positive maximum admits nobody.
func CanAdmit(activeCount int64, maxMentees int) bool {
	return activeCount < int64(maxMentees)
}
