package library

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"tts/api/internal/remote"
)

// CreateGroup ignores blank names.
func (l *Library) CreateGroup(ctx context.Context, name string) (string, error) {
	if strings.TrimSpace(name) == "" {
		return "", nil
	}
	id, err := l.remote.Create(ctx, remote.CollectionGroups, groupRecord{Name: name})
	if err != nil {
		return "", fmt.Errorf("create group: %w", err)
	}
	return id, nil
}

// RenameGroup renames the group record and then, once that write has
// succeeded, rewrites every sentence that referenced oldName in a single
// transaction over the sentences collection. Blank names are ignored.
func (l *Library) RenameGroup(ctx context.Context, groupID, oldName, newName string) error {
	if strings.TrimSpace(newName) == "" {
		return nil
	}
	if err := l.remote.Update(ctx, remote.CollectionGroups, groupID, map[string]any{"name": newName}); err != nil {
		return fmt.Errorf("rename group %s: %w", groupID, err)
	}
	err := l.remote.Transaction(ctx, remote.CollectionSentences, func(current *remote.Snapshot) (*remote.Snapshot, error) {
		return cascadeRename(current, oldName, newName), nil
	})
	if err != nil {
		return fmt.Errorf("cascade rename %q -> %q: %w", oldName, newName, err)
	}
	return nil
}

// DeleteGroup removes the group record only. Sentences keep the old name.
func (l *Library) DeleteGroup(ctx context.Context, groupID string) error {
	if err := l.remote.Delete(ctx, remote.CollectionGroups, groupID); err != nil {
		return fmt.Errorf("delete group %s: %w", groupID, err)
	}
	return nil
}

// cascadeRename rewrites the group field of matching entries in place and
// returns the same snapshot. Fields other than group are preserved as stored.
func cascadeRename(current *remote.Snapshot, oldName, newName string) *remote.Snapshot {
	if current == nil {
		return current
	}
	encodedName, _ := json.Marshal(newName)
	for i, entry := range current.Entries {
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(entry.Data, &fields); err != nil {
			log.Printf("library: cascade skips sentence %s: %v", entry.ID, err)
			continue
		}
		var group string
		if raw, ok := fields["group"]; !ok || json.Unmarshal(raw, &group) != nil || group != oldName {
			continue
		}
		fields["group"] = encodedName
		data, err := json.Marshal(fields)
		if err != nil {
			log.Printf("library: cascade skips sentence %s: %v", entry.ID, err)
			continue
		}
		current.Entries[i].Data = data
	}
	return current
}
