// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tankline Contributors

package account

import "encoding/json"

// Starter garage contents for new accounts.
const (
	starterTankID        = "m4a1_sherman"
	starterFirstShellID  = "m4a1_sherman.m75"
	starterShellCapacity = 70
)

// Loadout is the structured form of the accounts.loadout document. The core
// treats it as opaque except for starter seeding.
type Loadout struct {
	SelectedTankID string                 `json:"selected_tank_id,omitempty"`
	Tanks          map[string]TankLoadout `json:"tanks,omitempty"`
}

// TankLoadout describes one owned tank.
type TankLoadout struct {
	UnlockedShellIDs []string       `json:"unlocked_shell_ids"`
	ShellLoadoutByID map[string]int `json:"shell_loadout_by_id"`
}

// StarterLoadout returns the loadout seeded for new accounts.
func StarterLoadout() Loadout {
	return Loadout{
		SelectedTankID: starterTankID,
		Tanks: map[string]TankLoadout{
			starterTankID: {
				UnlockedShellIDs: []string{starterFirstShellID},
				ShellLoadoutByID: map[string]int{starterFirstShellID: starterShellCapacity},
			},
		},
	}
}

// StarterLoadoutJSON returns the starter loadout serialized for storage.
func StarterLoadoutJSON() json.RawMessage {
	data, err := json.Marshal(StarterLoadout())
	if err != nil {
		// Marshaling a static struct cannot fail.
		panic(err)
	}
	return data
}

// EnsureStarterLoadout backfills the starter loadout for accounts whose
// loadout document has no tanks yet.
func EnsureStarterLoadout(raw json.RawMessage) json.RawMessage {
	var loadout Loadout
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &loadout); err == nil && len(loadout.Tanks) > 0 {
			return raw
		}
	}
	return StarterLoadoutJSON()
}
