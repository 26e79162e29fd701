// history/codec.go
//
// Compact line-oriented encoding of a room's roster and round log:
//
//	snapshot := players "$" rounds
//	players  := player ("|" player)*
//	player   := token ";" team "," isAI "," wins "," losses
//	rounds   := round ("|" round)*
//	round    := winnerIndex ";" steps
//	steps    := step ("," step)*    rps: fixed-width move codes, one per player
//	          | col ("," col)*      connect4: column indices
//
// The server is the production encoder; the client decodes. Encode is
// kept as the exact inverse for archiving and tests.
package history

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/wfunc/gameclient/models"
)

// ErrMalformedHistory 快照解析失败
var ErrMalformedHistory = errors.New("malformed history snapshot")

// PlayerEntry 编码快照中的一名玩家
type PlayerEntry struct {
	Token  string
	Team   string
	IsAI   bool
	Wins   int
	Losses int
}

// Round is one decoded round. Number is 1-based display numbering,
// oldest first. WinnerIndex is -1 for a draw; WinnerToken is resolved
// from the player list at decode time.
type Round struct {
	Number      int
	WinnerIndex int
	WinnerToken string
	Steps       []string // rps: one fixed-width string per step
	Moves       []int    // connect4: column indices
}

// Snapshot 一个房间的解码结果
type Snapshot struct {
	Kind    models.GameKind
	Players []PlayerEntry
	Rounds  []Round
}

// SplitStep breaks a fixed-width rps step into per-player move codes.
func SplitStep(step string) []string {
	moves := make([]string, 0, len(step))
	for _, r := range step {
		moves = append(moves, string(r))
	}
	return moves
}

// Decode parses an encoded snapshot. It is total over the grammar: a
// trailing empty rounds segment yields zero rounds, and any malformed
// segment returns an error wrapping ErrMalformedHistory instead of
// panicking or indexing out of range.
func Decode(kind models.GameKind, encoded string) (*Snapshot, error) {
	parts := strings.SplitN(encoded, "$", 2)
	if len(parts) != 2 {
		return nil, fmt.Errorf("%w: missing players/rounds separator", ErrMalformedHistory)
	}

	players, err := decodePlayers(parts[0])
	if err != nil {
		return nil, err
	}

	rounds, err := decodeRounds(kind, parts[1], len(players))
	if err != nil {
		return nil, err
	}
	for i := range rounds {
		rounds[i].Number = i + 1
		if rounds[i].WinnerIndex >= 0 {
			rounds[i].WinnerToken = players[rounds[i].WinnerIndex].Token
		}
	}

	return &Snapshot{Kind: kind, Players: players, Rounds: rounds}, nil
}

func decodePlayers(segment string) ([]PlayerEntry, error) {
	if segment == "" {
		return nil, fmt.Errorf("%w: empty player roster", ErrMalformedHistory)
	}

	var players []PlayerEntry
	for _, raw := range strings.Split(segment, "|") {
		tokenRest := strings.SplitN(raw, ";", 2)
		if len(tokenRest) != 2 || tokenRest[0] == "" {
			return nil, fmt.Errorf("%w: bad player %q", ErrMalformedHistory, raw)
		}

		fields := strings.Split(tokenRest[1], ",")
		if len(fields) != 4 {
			return nil, fmt.Errorf("%w: bad player fields %q", ErrMalformedHistory, raw)
		}

		var isAI bool
		switch fields[1] {
		case "T":
			isAI = true
		case "F":
			isAI = false
		default:
			return nil, fmt.Errorf("%w: bad ai flag %q", ErrMalformedHistory, fields[1])
		}

		wins, err := strconv.Atoi(fields[2])
		if err != nil || wins < 0 {
			return nil, fmt.Errorf("%w: bad wins %q", ErrMalformedHistory, fields[2])
		}
		losses, err := strconv.Atoi(fields[3])
		if err != nil || losses < 0 {
			return nil, fmt.Errorf("%w: bad losses %q", ErrMalformedHistory, fields[3])
		}

		players = append(players, PlayerEntry{
			Token:  tokenRest[0],
			Team:   fields[0],
			IsAI:   isAI,
			Wins:   wins,
			Losses: losses,
		})
	}
	return players, nil
}

func decodeRounds(kind models.GameKind, segment string, numPlayers int) ([]Round, error) {
	// 尚无已完成回合的房间
	if segment == "" {
		return nil, nil
	}

	var rounds []Round
	for _, raw := range strings.Split(segment, "|") {
		winnerSteps := strings.SplitN(raw, ";", 2)
		if len(winnerSteps) != 2 {
			return nil, fmt.Errorf("%w: bad round %q", ErrMalformedHistory, raw)
		}

		round := Round{WinnerIndex: -1}
		if winnerSteps[0] != "" {
			idx, err := strconv.Atoi(winnerSteps[0])
			if err != nil || idx < 0 || idx >= numPlayers {
				return nil, fmt.Errorf("%w: bad winner index %q", ErrMalformedHistory, winnerSteps[0])
			}
			round.WinnerIndex = idx
		}

		if winnerSteps[1] != "" {
			for _, step := range strings.Split(winnerSteps[1], ",") {
				switch kind {
				case models.GameConnect4:
					col, err := strconv.Atoi(step)
					if err != nil || col < 0 {
						return nil, fmt.Errorf("%w: bad column %q", ErrMalformedHistory, step)
					}
					round.Moves = append(round.Moves, col)
				default:
					if len(step) != numPlayers {
						return nil, fmt.Errorf("%w: step %q does not match roster size %d",
							ErrMalformedHistory, step, numPlayers)
					}
					round.Steps = append(round.Steps, step)
				}
			}
		}

		rounds = append(rounds, round)
	}
	return rounds, nil
}

// Encode is the inverse of Decode.
func Encode(snap *Snapshot) string {
	var b strings.Builder

	for i, p := range snap.Players {
		if i > 0 {
			b.WriteByte('|')
		}
		ai := "F"
		if p.IsAI {
			ai = "T"
		}
		fmt.Fprintf(&b, "%s;%s,%s,%d,%d", p.Token, p.Team, ai, p.Wins, p.Losses)
	}

	b.WriteByte('$')

	for i, r := range snap.Rounds {
		if i > 0 {
			b.WriteByte('|')
		}
		if r.WinnerIndex >= 0 {
			b.WriteString(strconv.Itoa(r.WinnerIndex))
		}
		b.WriteByte(';')
		if snap.Kind == models.GameConnect4 {
			for j, col := range r.Moves {
				if j > 0 {
					b.WriteByte(',')
				}
				b.WriteString(strconv.Itoa(col))
			}
		} else {
			b.WriteString(strings.Join(r.Steps, ","))
		}
	}

	return b.String()
}
