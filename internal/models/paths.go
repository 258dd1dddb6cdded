package models

import "fmt"

// Store path layout. Everything the coordinator touches lives under these
// three prefixes of the shared document tree.

func UserPath(uid string) string {
	return fmt.Sprintf("users/%s", uid)
}

func UserGameCodePath(uid string) string {
	return fmt.Sprintf("users/%s/currentGameCode", uid)
}

func GamePath(code string) string {
	return fmt.Sprintf("games/%s", code)
}

func RosterPath(code string) string {
	return fmt.Sprintf("games/%s/playerRoster", code)
}

func RosterEntryPath(code, uid string) string {
	return fmt.Sprintf("games/%s/playerRoster/%s", code, uid)
}

func RosterNamePath(code, uid string) string {
	return fmt.Sprintf("games/%s/playerRoster/%s/gameDisplayName", code, uid)
}
