package kafkabroker

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/moraxdb/morax/internal/kerr"
	"github.com/moraxdb/morax/internal/kmsg"
	"github.com/moraxdb/morax/internal/metastore"
)

// JoinGroup implements the JoinGroup mutator from spec §4.7: it upserts
// this member's protocols into the group, elects a leader if none exists,
// and recomputes a new generation's protocol by plurality vote over the
// intersection of every member's offered protocol names.
func (b *Broker) JoinGroup(ctx context.Context, req kmsg.JoinGroupRequest, client ClientInfo) kmsg.JoinGroupResponse {
	memberID := req.MemberID
	insertIfMissing := false
	if memberID == "" {
		memberID = client.ClientID + "-" + uuid.New().String()
		insertIfMissing = true
	}

	var groupErr error
	group, err := b.Meta.UpsertGroup(ctx, req.GroupID, insertIfMissing, func(current metastore.GroupMeta) (metastore.GroupMeta, error) {
		if current.ProtocolType != "" && current.ProtocolType != req.ProtocolType {
			return current, kerr.InconsistentGroupProtocol
		}
		if len(current.Members) == 0 {
			current.ProtocolType = req.ProtocolType
		}

		protocols := make(map[string][]byte, len(req.Protocols))
		order := make([]string, 0, len(req.Protocols))
		for _, p := range req.Protocols {
			protocols[p.Name] = p.Metadata
			order = append(order, p.Name)
		}
		current.Members[memberID] = metastore.MemberMeta{
			GroupID:            req.GroupID,
			MemberID:           memberID,
			ClientID:           client.ClientID,
			ClientHost:         client.ClientHost,
			ProtocolType:       req.ProtocolType,
			Protocols:          protocols,
			ProtocolOrder:      order,
			RebalanceTimeoutMs: req.RebalanceTimeoutMs,
			SessionTimeoutMs:   req.SessionTimeoutMs,
		}
		if current.LeaderID == "" {
			current.LeaderID = memberID
		}

		next, nerr := nextGeneration(current)
		if nerr != nil {
			return current, nerr
		}
		return next, nil
	})
	groupErr = err

	if groupErr == kerr.InconsistentGroupProtocol {
		return kmsg.JoinGroupResponse{ErrorCode: int16(kerr.InconsistentGroupProtocol)}
	}
	if groupErr != nil {
		b.recordResult(kmsg.KeyJoinGroup, kerr.UnknownServerError)
		return kmsg.JoinGroupResponse{ErrorCode: int16(kerr.UnknownServerError)}
	}

	resp := kmsg.JoinGroupResponse{
		ErrorCode:       int16(kerr.None),
		GenerationID:    group.GenerationID,
		ProtocolType:    group.ProtocolType,
		ProtocolTypeSet: group.ProtocolType != "",
		ProtocolName:    group.Protocol,
		ProtocolNameSet: group.Protocol != "",
		LeaderID:        group.LeaderID,
		MemberID:        memberID,
	}
	for id, m := range group.Members {
		resp.Members = append(resp.Members, kmsg.JoinGroupResponseMember{
			MemberID: id,
			Metadata: m.Protocols[group.Protocol],
		})
	}
	sort.Slice(resp.Members, func(i, j int) bool { return resp.Members[i].MemberID < resp.Members[j].MemberID })
	b.recordResult(kmsg.KeyJoinGroup, kerr.None)
	return resp
}

// nextGeneration implements spec §4.7's next_generation(): bump the
// generation id and recompute the winning protocol by plurality vote over
// the intersection of every member's declared protocol names, each member
// voting for the first name (in its own declared order) that is a
// candidate; ties break lexicographically.
func nextGeneration(g metastore.GroupMeta) (metastore.GroupMeta, error) {
	g.GenerationID++
	if len(g.Members) == 0 {
		g.Protocol = ""
		return g, nil
	}

	candidates := intersectProtocols(g.Members)
	if len(candidates) == 0 {
		return g, kerr.InconsistentGroupProtocol
	}

	votes := make(map[string]int, len(candidates))
	for _, m := range g.Members {
		for _, name := range m.ProtocolOrder {
			if _, ok := candidates[name]; ok {
				votes[name]++
				break
			}
		}
	}

	var winner string
	best := -1
	names := make([]string, 0, len(votes))
	for name := range votes {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if votes[name] > best {
			best = votes[name]
			winner = name
		}
	}
	g.Protocol = winner
	return g, nil
}

func intersectProtocols(members map[string]metastore.MemberMeta) map[string]struct{} {
	var first bool = true
	candidates := map[string]struct{}{}
	for _, m := range members {
		if first {
			for name := range m.Protocols {
				candidates[name] = struct{}{}
			}
			first = false
			continue
		}
		for name := range candidates {
			if _, ok := m.Protocols[name]; !ok {
				delete(candidates, name)
			}
		}
	}
	return candidates
}

// SyncGroup implements the SyncGroup mutator from spec §4.7: writes each
// requested member's assignment into the group, then echoes the caller's
// own stored assignment.
func (b *Broker) SyncGroup(ctx context.Context, req kmsg.SyncGroupRequest, _ ClientInfo) kmsg.SyncGroupResponse {
	group, err := b.Meta.UpsertGroup(ctx, req.GroupID, false, func(current metastore.GroupMeta) (metastore.GroupMeta, error) {
		if current.GenerationID != req.GenerationID {
			return current, kerr.IllegalGeneration
		}
		if _, ok := current.Members[req.MemberID]; !ok {
			return current, kerr.UnknownMemberID
		}
		for _, a := range req.Assignments {
			if m, ok := current.Members[a.MemberID]; ok {
				m.Assignment = a.Assignment
				current.Members[a.MemberID] = m
			}
		}
		return current, nil
	})
	if err == kerr.IllegalGeneration || err == kerr.UnknownMemberID {
		b.recordResult(kmsg.KeySyncGroup, err.(kerr.Code))
		return kmsg.SyncGroupResponse{ErrorCode: int16(err.(kerr.Code))}
	}
	if err != nil {
		b.recordResult(kmsg.KeySyncGroup, kerr.UnknownServerError)
		return kmsg.SyncGroupResponse{ErrorCode: int16(kerr.UnknownServerError)}
	}

	member := group.Members[req.MemberID]
	b.recordResult(kmsg.KeySyncGroup, kerr.None)
	return kmsg.SyncGroupResponse{
		ErrorCode:       int16(kerr.None),
		ProtocolType:    group.ProtocolType,
		ProtocolTypeSet: group.ProtocolType != "",
		ProtocolName:    group.Protocol,
		ProtocolNameSet: group.Protocol != "",
		Assignment:      member.Assignment,
	}
}
