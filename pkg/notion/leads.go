package notion

import (
	"context"
	"errors"

	"github.com/jomei/notionapi"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/inamasaru/leadsync/internal/lead"
	"github.com/inamasaru/leadsync/internal/resilience"
)

// Lead database property names. The wire format stays inside this package;
// callers only see lead.Lead.
const (
	propName          = "Name"
	propExternalID    = "External_ID"
	propEmail         = "Email"
	propPhone         = "Phone"
	propProduct       = "Product"
	propPrice         = "Price"
	propCVR           = "CVR"
	propStatus        = "Status"
	propPaymentStatus = "Payment_Status"
	propNotes         = "Notes"
)

// LeadStore is the gateway to the lead database.
type LeadStore struct {
	client Client
	dbID   string
	retry  resilience.RetryConfig
}

// NewLeadStore creates a gateway to the lead database dbID.
func NewLeadStore(client Client, dbID string, retry resilience.RetryConfig) *LeadStore {
	return &LeadStore{client: client, dbID: dbID, retry: retry}
}

// QueryAll fetches every lead in the database, following the cursor/has-more
// pagination contract. Each page request is retried on transient failure.
func (s *LeadStore) QueryAll(ctx context.Context) ([]lead.Lead, error) {
	retry := s.retry
	retry.OnRetry = resilience.RetryLogger("notion", "query_database")

	var all []lead.Lead
	req := &notionapi.DatabaseQueryRequest{}
	for {
		resp, err := resilience.DoVal(ctx, retry, func(ctx context.Context) (*notionapi.DatabaseQueryResponse, error) {
			resp, err := s.client.QueryDatabase(ctx, s.dbID, req)
			if err != nil {
				logAPIError("query leads", err)
				return nil, err
			}
			return resp, nil
		})
		if err != nil {
			return nil, eris.Wrap(err, "notion: query leads")
		}

		for _, page := range resp.Results {
			all = append(all, pageToLead(page))
		}

		if !resp.HasMore || resp.NextCursor == "" {
			break
		}
		req = &notionapi.DatabaseQueryRequest{StartCursor: resp.NextCursor}
	}

	zap.L().Info("fetched leads from notion", zap.Int("count", len(all)))
	return all, nil
}

// Insert creates one new lead record and returns its assigned page ID.
func (s *LeadStore) Insert(ctx context.Context, l lead.Lead) (string, error) {
	retry := s.retry
	retry.OnRetry = resilience.RetryLogger("notion", "create_page")

	req := &notionapi.PageCreateRequest{
		Parent: notionapi.Parent{
			Type:       notionapi.ParentTypeDatabaseID,
			DatabaseID: notionapi.DatabaseID(s.dbID),
		},
		Properties: leadToProperties(l),
	}

	page, err := resilience.DoVal(ctx, retry, func(ctx context.Context) (*notionapi.Page, error) {
		page, err := s.client.CreatePage(ctx, req)
		if err != nil {
			logAPIError("create lead", err)
			return nil, err
		}
		return page, nil
	})
	if err != nil {
		return "", eris.Wrap(err, "notion: create lead")
	}

	zap.L().Info("created notion lead", zap.String("page_id", string(page.ID)))
	return string(page.ID), nil
}

// logAPIError logs explicit non-success responses with their status and
// detail. Transport failures are left to the retry logger.
func logAPIError(operation string, err error) {
	var apiErr *notionapi.Error
	if errors.As(err, &apiErr) {
		zap.L().Error("notion request failed",
			zap.String("operation", operation),
			zap.Int("status", apiErr.Status),
			zap.String("code", string(apiErr.Code)),
			zap.String("message", apiErr.Message),
		)
	}
}

func richTextValue(rts []notionapi.RichText) string {
	if len(rts) == 0 {
		return ""
	}
	if rts[0].PlainText != "" {
		return rts[0].PlainText
	}
	if rts[0].Text != nil {
		return rts[0].Text.Content
	}
	return ""
}

// pageToLead translates a Notion page's property bag into a typed lead.
// Missing or differently-typed properties map to zero values.
func pageToLead(page notionapi.Page) lead.Lead {
	var l lead.Lead
	for name, prop := range page.Properties {
		switch name {
		case propName:
			if tp, ok := prop.(*notionapi.TitleProperty); ok {
				l.Name = richTextValue(tp.Title)
			}
		case propExternalID:
			if rtp, ok := prop.(*notionapi.RichTextProperty); ok {
				l.ExternalID = richTextValue(rtp.RichText)
			}
		case propEmail:
			if ep, ok := prop.(*notionapi.EmailProperty); ok {
				l.Email = ep.Email
			}
		case propPhone:
			if pp, ok := prop.(*notionapi.PhoneNumberProperty); ok {
				l.Phone = pp.PhoneNumber
			}
		case propProduct:
			if rtp, ok := prop.(*notionapi.RichTextProperty); ok {
				l.Product = richTextValue(rtp.RichText)
			}
		case propPrice:
			if np, ok := prop.(*notionapi.NumberProperty); ok {
				l.Price = int64(np.Number)
			}
		case propCVR:
			if np, ok := prop.(*notionapi.NumberProperty); ok {
				cvr := np.Number
				l.ExpectedCVR = &cvr
			}
		case propStatus:
			if sp, ok := prop.(*notionapi.SelectProperty); ok {
				l.Status = sp.Select.Name
			}
		case propPaymentStatus:
			if sp, ok := prop.(*notionapi.SelectProperty); ok {
				l.PaymentStat = sp.Select.Name
			}
		case propNotes:
			if rtp, ok := prop.(*notionapi.RichTextProperty); ok {
				l.Notes = richTextValue(rtp.RichText)
			}
		}
	}
	return l
}

func textProperty(s string) []notionapi.RichText {
	if s == "" {
		return []notionapi.RichText{}
	}
	return []notionapi.RichText{
		{Type: notionapi.ObjectTypeText, Text: &notionapi.Text{Content: s}},
	}
}

// leadToProperties translates a typed lead into the Notion property bag.
func leadToProperties(l lead.Lead) notionapi.Properties {
	props := notionapi.Properties{
		propName: notionapi.TitleProperty{
			Type:  notionapi.PropertyTypeTitle,
			Title: textProperty(l.Name),
		},
		propExternalID: notionapi.RichTextProperty{
			Type:     notionapi.PropertyTypeRichText,
			RichText: textProperty(l.ExternalID),
		},
		propProduct: notionapi.RichTextProperty{
			Type:     notionapi.PropertyTypeRichText,
			RichText: textProperty(l.Product),
		},
		propPrice: notionapi.NumberProperty{
			Type:   notionapi.PropertyTypeNumber,
			Number: float64(l.Price),
		},
		propStatus: notionapi.SelectProperty{
			Type:   notionapi.PropertyTypeSelect,
			Select: notionapi.Option{Name: l.Status},
		},
		propPaymentStatus: notionapi.SelectProperty{
			Type:   notionapi.PropertyTypeSelect,
			Select: notionapi.Option{Name: l.PaymentStat},
		},
		propNotes: notionapi.RichTextProperty{
			Type:     notionapi.PropertyTypeRichText,
			RichText: textProperty(l.Notes),
		},
	}
	if l.Email != "" {
		props[propEmail] = notionapi.EmailProperty{
			Type:  notionapi.PropertyTypeEmail,
			Email: l.Email,
		}
	}
	if l.Phone != "" {
		props[propPhone] = notionapi.PhoneNumberProperty{
			Type:        notionapi.PropertyTypePhoneNumber,
			PhoneNumber: l.Phone,
		}
	}
	if l.ExpectedCVR != nil {
		props[propCVR] = notionapi.NumberProperty{
			Type:   notionapi.PropertyTypeNumber,
			Number: *l.ExpectedCVR,
		}
	}
	return props
}
