package lobby

import "gamelobby/coordinator/internal/models"

// Phase is the effective lobby phase one client derives from its user record
// and the game document it points at.
type Phase string

const (
	// PhaseLoading: inputs not resolved yet, or the pointer names a game
	// whose document has not arrived.
	PhaseLoading Phase = "loading"
	// PhaseStart: no current game; create and join are the available actions.
	PhaseStart Phase = "start"
	// PhaseCanceled: the game ended out from under this user; the only
	// action is acknowledging, which clears the pointer.
	PhaseCanceled Phase = "canceled"
	PhaseInLobby  Phase = "in_lobby"
	PhaseLive     Phase = "live"
	PhaseEnded    Phase = "ended"
)

// derivePhase is the pure state-machine core, recomputed whenever either
// input changes.
func derivePhase(userLoaded bool, user models.User, game *models.Game) Phase {
	switch {
	case !userLoaded:
		return PhaseLoading
	case user.Cancelled():
		return PhaseCanceled
	case user.GameCode() == "":
		return PhaseStart
	case game == nil:
		return PhaseLoading
	}
	switch game.GameStatus {
	case models.StatusLive:
		return PhaseLive
	case models.StatusEnded:
		return PhaseEnded
	default:
		return PhaseInLobby
	}
}
