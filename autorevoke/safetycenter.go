package autorevoke

import (
	"encoding/base64"
	"strings"

	"github.com/pkg/errors"
	"google.golang.org/protobuf/encoding/protowire"
)

const (
	unusedAppsSourceID = "AndroidPermissionAutoRevoke"
	unusedAppsIssueID  = "unused_apps_issue"
)

// Field numbers of SafetyCenterIssueKey and SafetyCenterIssueId.
const (
	keySourceID      protowire.Number = 1
	keySourceIssueID protowire.Number = 2
	keyUserID        protowire.Number = 3

	idIssueKey    protowire.Number = 1
	idIssueTypeID protowire.Number = 2
)

// UnusedAppsIssueID returns the safety center id of the unused apps issue
// for userID: a SafetyCenterIssueId message in URL-safe base64.
func UnusedAppsIssueID(userID int) string {
	var key []byte
	key = protowire.AppendTag(key, keySourceID, protowire.BytesType)
	key = protowire.AppendString(key, unusedAppsSourceID)
	key = protowire.AppendTag(key, keySourceIssueID, protowire.BytesType)
	key = protowire.AppendString(key, unusedAppsIssueID)
	if userID != 0 {
		key = protowire.AppendTag(key, keyUserID, protowire.VarintType)
		key = protowire.AppendVarint(key, uint64(userID))
	}

	var id []byte
	id = protowire.AppendTag(id, idIssueKey, protowire.BytesType)
	id = protowire.AppendBytes(id, key)
	id = protowire.AppendTag(id, idIssueTypeID, protowire.BytesType)
	id = protowire.AppendString(id, unusedAppsIssueID)
	return base64.URLEncoding.EncodeToString(id)
}

// IssueKey is the decoded key of a safety center issue id.
type IssueKey struct {
	SourceID      string
	SourceIssueID string
	UserID        int
	IssueTypeID   string
}

// DecodeIssueID decodes an id produced by UnusedAppsIssueID or read from the
// safety center.
func DecodeIssueID(s string) (IssueKey, error) {
	raw, err := base64.URLEncoding.DecodeString(s)
	if err != nil {
		return IssueKey{}, errors.Wrap(err, "issue id")
	}
	var k IssueKey
	err = consumeFields(raw, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch {
		case num == idIssueKey && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return n, nil
			}
			return n, consumeFields(v, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
				switch {
				case num == keySourceID && typ == protowire.BytesType:
					v, n := protowire.ConsumeString(b)
					k.SourceID = v
					return n, nil
				case num == keySourceIssueID && typ == protowire.BytesType:
					v, n := protowire.ConsumeString(b)
					k.SourceIssueID = v
					return n, nil
				case num == keyUserID && typ == protowire.VarintType:
					v, n := protowire.ConsumeVarint(b)
					k.UserID = int(v)
					return n, nil
				}
				return protowire.ConsumeFieldValue(num, typ, b), nil
			})
		case num == idIssueTypeID && typ == protowire.BytesType:
			v, n := protowire.ConsumeString(b)
			k.IssueTypeID = v
			return n, nil
		}
		return protowire.ConsumeFieldValue(num, typ, b), nil
	})
	if err != nil {
		return IssueKey{}, errors.Wrap(err, "issue id")
	}
	return k, nil
}

// consumeFields walks the fields of a message, handing each value to fn,
// which returns how many bytes it consumed.
func consumeFields(b []byte, fn func(protowire.Number, protowire.Type, []byte) (int, error)) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return protowire.ParseError(n)
		}
		b = b[n:]
		m, err := fn(num, typ, b)
		if err != nil {
			return err
		}
		if m < 0 {
			return protowire.ParseError(m)
		}
		b = b[m:]
	}
	return nil
}

// SafetyCenterSupported reports whether the device ships a safety center.
func (s *Suite) SafetyCenterSupported() bool {
	s.dev.T().Helper()
	out, err := s.dev.Shell("cmd", "safety_center", "supported")
	if err != nil {
		return false
	}
	return strings.TrimSpace(out) == "true"
}

// HasSafetyCenterIssue reports whether the safety center currently shows the
// issue with the given id.
func (s *Suite) HasSafetyCenterIssue(id string) (bool, error) {
	out, err := s.dev.Shell("dumpsys", "safety_center")
	if err != nil {
		return false, errors.Wrap(err, "dumpsys safety_center")
	}
	return strings.Contains(out, id), nil
}
