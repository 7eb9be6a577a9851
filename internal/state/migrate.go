package state

import (
	"encoding/json"

	"github.com/hpungsan/mapreview/internal/review"
)

// migration upgrades a raw state document by exactly one version.
type migration func(doc map[string]any) map[string]any

// migrations[i] upgrades version i+1 to i+2.
var migrations = []migration{
	migrateV1toV2,
}

func init() {
	if len(migrations) != review.CurrentStateVersion-1 {
		panic("state: migration chain does not reach CurrentStateVersion")
	}
}

// documentVersion returns the stateVersion of doc. Documents written before
// versioning carry no stateVersion and count as version 1.
func documentVersion(doc map[string]any) int {
	n, ok := doc["stateVersion"].(json.Number)
	if !ok {
		return 1
	}
	v, err := n.Int64()
	if err != nil || v < 1 {
		return 1
	}
	return int(v)
}

// migrate applies every step from the document's version up to the current one.
func migrate(doc map[string]any) map[string]any {
	for v := documentVersion(doc); v < review.CurrentStateVersion; v++ {
		doc = migrations[v-1](doc)
	}
	return doc
}

// migrateV1toV2 renames massPermHotkeys.play to massPermHotkeys.toggle and
// turns a numeric session.threadId into a string.
func migrateV1toV2(doc map[string]any) map[string]any {
	if settings, ok := doc["settings"].(map[string]any); ok {
		if hotkeys, ok := settings["massPermHotkeys"].(map[string]any); ok {
			if legacy, ok := hotkeys["play"]; ok {
				if _, has := hotkeys["toggle"]; !has {
					hotkeys["toggle"] = legacy
				}
				delete(hotkeys, "play")
			}
		}
	}
	if session, ok := doc["session"].(map[string]any); ok {
		if n, ok := session["threadId"].(json.Number); ok {
			session["threadId"] = n.String()
		}
	}
	doc["stateVersion"] = json.Number("2")
	return doc
}
