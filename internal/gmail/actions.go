package gmail

import (
	"context"
	"fmt"

	gmailv1 "google.golang.org/api/gmail/v1"
)

// batchModifyLimit is the most ids users.messages.batchModify accepts per call.
const batchModifyLimit = 1000

// TrashMessages moves messages to trash in batchModify chunks.
func TrashMessages(ctx context.Context, svc *gmailv1.Service, messageIDs []string) error {
	return batchModify(ctx, svc, messageIDs, &gmailv1.BatchModifyMessagesRequest{
		AddLabelIds: []string{"TRASH"},
	})
}

// ArchiveMessages removes the INBOX label from messages.
func ArchiveMessages(ctx context.Context, svc *gmailv1.Service, messageIDs []string) error {
	return batchModify(ctx, svc, messageIDs, &gmailv1.BatchModifyMessagesRequest{
		RemoveLabelIds: []string{"INBOX"},
	})
}

func batchModify(ctx context.Context, svc *gmailv1.Service, ids []string, tmpl *gmailv1.BatchModifyMessagesRequest) error {
	for start := 0; start < len(ids); start += batchModifyLimit {
		end := start + batchModifyLimit
		if end > len(ids) {
			end = len(ids)
		}
		req := *tmpl
		req.Ids = ids[start:end]
		if err := svc.Users.Messages.BatchModify(user, &req).Context(ctx).Do(); err != nil {
			return fmt.Errorf("batch modify %d-%d of %d: %w", start, end, len(ids), mapError(err))
		}
	}
	return nil
}

// Mailbox exposes the bulk actions on one authorized account.
type Mailbox struct {
	svc *gmailv1.Service
}

func NewMailbox(svc *gmailv1.Service) *Mailbox { return &Mailbox{svc: svc} }

func (m *Mailbox) Trash(ctx context.Context, ids []string) error {
	return TrashMessages(ctx, m.svc, ids)
}

func (m *Mailbox) Archive(ctx context.Context, ids []string) error {
	return ArchiveMessages(ctx, m.svc, ids)
}
