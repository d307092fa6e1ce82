package hub

import (
	"fmt"

	"github.com/wricardo/gridclaim/game/engine"
)

func playerID(slot int) engine.PlayerID {
	return engine.PlayerID(fmt.Sprintf("P%d", slot))
}
