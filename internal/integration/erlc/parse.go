// Copyright (c) 2026 Sentinel. All rights reserved.
// Author: ops@sentinelhq.dev

package erlc

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Candidate key lists, in priority order. The first key present in a
// response object wins; later candidates are only consulted when earlier
// ones are absent. These lists are the single source of truth for every
// shape variation the upstream has been observed to produce.
var (
	envelopeKeys    = []string{"players", "Players", "data"}
	playerNameKeys  = []string{"Player", "player", "Name", "name", "Username", "username"}
	permissionKeys  = []string{"Permission", "permission", "Team", "team"}
	callsignKeys    = []string{"Callsign", "callsign"}
	commandKeys     = []string{"Command", "command"}
	timestampKeys   = []string{"Timestamp", "timestamp", "Time", "time"}
	serverNameKeys  = []string{"Name", "name", "ServerName", "server_name"}
	ownerKeys       = []string{"OwnerId", "OwnerID", "owner_id"}
	currentKeys     = []string{"CurrentPlayers", "current_players", "PlayerCount", "player_count"}
	maxPlayersKeys  = []string{"MaxPlayers", "max_players"}
)

// decodeServerStatus parses the /server response.
func decodeServerStatus(raw []byte) (*ServerStatus, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("decode server status: %w", err)
	}

	return &ServerStatus{
		Name:           stringField(fields, serverNameKeys),
		OwnerID:        intField(fields, ownerKeys),
		CurrentPlayers: int(intField(fields, currentKeys)),
		MaxPlayers:     int(intField(fields, maxPlayersKeys)),
	}, nil
}

// decodePlayers parses the /server/players response.
//
// Accepted shapes: a bare array of player objects, or an envelope object
// holding the array under one of [envelopeKeys]. The player identity field
// is either a combined "username:robloxID" string or a plain username.
func decodePlayers(raw []byte) ([]Player, error) {
	items, err := unwrapArray(raw)
	if err != nil {
		return nil, fmt.Errorf("decode players: %w", err)
	}

	players := make([]Player, 0, len(items))
	for _, item := range items {
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(item, &fields); err != nil {
			continue // skip malformed entries, keep the rest of the roster
		}

		username, robloxID := splitIdentity(stringField(fields, playerNameKeys))
		if username == "" {
			continue
		}

		players = append(players, Player{
			Username:   username,
			RobloxID:   robloxID,
			Permission: stringField(fields, permissionKeys),
			Callsign:   stringField(fields, callsignKeys),
		})
	}
	return players, nil
}

// decodeCommandLogs parses the /server/commandlogs response.
func decodeCommandLogs(raw []byte) ([]CommandLogEntry, error) {
	items, err := unwrapArray(raw)
	if err != nil {
		return nil, fmt.Errorf("decode command logs: %w", err)
	}

	entries := make([]CommandLogEntry, 0, len(items))
	for _, item := range items {
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(item, &fields); err != nil {
			continue
		}

		player, _ := splitIdentity(stringField(fields, playerNameKeys))
		entries = append(entries, CommandLogEntry{
			Player:    player,
			Command:   stringField(fields, commandKeys),
			Timestamp: intField(fields, timestampKeys),
		})
	}
	return entries, nil
}

// unwrapArray accepts either a bare JSON array or an envelope object
// holding one under a candidate key.
func unwrapArray(raw []byte) ([]json.RawMessage, error) {
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err == nil {
		return items, nil
	}

	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, err
	}
	for _, key := range envelopeKeys {
		if inner, ok := envelope[key]; ok {
			if err := json.Unmarshal(inner, &items); err != nil {
				return nil, err
			}
			return items, nil
		}
	}
	// An envelope with no recognized array key is an empty result, not an error.
	return nil, nil
}

// stringField returns the first candidate key's value coerced to a string.
func stringField(fields map[string]json.RawMessage, candidates []string) string {
	for _, key := range candidates {
		raw, ok := fields[key]
		if !ok {
			continue
		}
		var value string
		if err := json.Unmarshal(raw, &value); err == nil {
			return value
		}
		// Numbers show up where strings are expected (e.g. numeric callsigns).
		var number json.Number
		if err := json.Unmarshal(raw, &number); err == nil {
			return number.String()
		}
	}
	return ""
}

// intField returns the first candidate key's value coerced to an int64,
// accepting both numeric and string-encoded numbers.
func intField(fields map[string]json.RawMessage, candidates []string) int64 {
	for _, key := range candidates {
		raw, ok := fields[key]
		if !ok {
			continue
		}
		var number int64
		if err := json.Unmarshal(raw, &number); err == nil {
			return number
		}
		var text string
		if err := json.Unmarshal(raw, &text); err == nil {
			if parsed, err := strconv.ParseInt(text, 10, 64); err == nil {
				return parsed
			}
		}
	}
	return 0
}

// splitIdentity splits the combined "username:robloxID" identity format.
// A plain username without the separator is returned with a zero ID.
func splitIdentity(identity string) (string, int64) {
	username, idPart, found := strings.Cut(identity, ":")
	if !found {
		return strings.TrimSpace(identity), 0
	}
	robloxID, _ := strconv.ParseInt(strings.TrimSpace(idPart), 10, 64)
	return strings.TrimSpace(username), robloxID
}
