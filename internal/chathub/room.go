package chathub

// ResolveRoomID maps an unordered pair of user ids to the canonical room id.
// The pair is sorted before joining, so ResolveRoomID(a, b) == ResolveRoomID(b, a)
// and exactly one room exists per pair.
func ResolveRoomID(userA, userB string) string {
	if userB < userA {
		userA, userB = userB, userA
	}
	return userA + "_" + userB
}
