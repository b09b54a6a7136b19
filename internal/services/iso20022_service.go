package services

import (
	"encoding/xml"
	"errors"
	"fmt"
	"time"

	"github.com/facesheet360/carecoins/internal/models"
	"github.com/moov-io/iso20022/pkg/common"
	"github.com/moov-io/iso20022/pkg/pacs_v08"
)

const (
	Pacs008MessageType = "pacs.008.001.08"
	Pacs002MessageType = "pacs.002.001.08"

	// Debtor agent identifier for payouts leaving the platform.
	platformBIC = "FSHTUS33"
)

// SettlementStatus is one transaction status line from a pacs.002 report.
type SettlementStatus struct {
	ExternalReference string
	Status            string
}

type ISO20022Service struct{}

func NewISO20022Service() *ISO20022Service {
	return &ISO20022Service{}
}

// CreatePacs008 builds the credit transfer that instructs the payout rail to
// pay a bank-transfer cash-out. The payout's external reference travels as
// the end-to-end id so the settlement report can be matched back.
func (iso *ISO20022Service) CreatePacs008(p *models.Payout, bank *models.BankTransferDetails) (*pacs_v08.FIToFICustomerCreditTransferV08, error) {
	if bank == nil {
		return nil, errors.New("pacs.008 requires bank transfer details")
	}
	creDtTm := time.Now().UTC()
	settlementDate := creDtTm
	amount := p.FiatAmount.InexactFloat64()

	doc := &pacs_v08.FIToFICustomerCreditTransferV08{
		GrpHdr: pacs_v08.GroupHeader93{
			MsgId:   common.Max35Text(p.ID[:min(len(p.ID), 35)]),
			CreDtTm: common.ISODateTime(creDtTm),
			NbOfTxs: "1",
			TtlIntrBkSttlmAmt: &pacs_v08.ActiveCurrencyAndAmount{
				Ccy:   common.ActiveCurrencyCode(p.Currency),
				Value: amount,
			},
			IntrBkSttlmDt: (*common.ISODate)(&settlementDate),
			SttlmInf: pacs_v08.SettlementInstruction7{
				SttlmMtd: "CLRG", // Clearing
			},
		},
		CdtTrfTxInf: []pacs_v08.CreditTransferTransaction39{
			{
				PmtId: pacs_v08.PaymentIdentification7{
					InstrId:    &[]common.Max35Text{common.Max35Text(fmt.Sprintf("CC%d", p.LedgerEntryID))}[0],
					EndToEndId: common.Max35Text(p.ExternalReference),
					TxId:       &[]common.Max35Text{common.Max35Text(p.ExternalReference)}[0],
				},
				IntrBkSttlmAmt: pacs_v08.ActiveCurrencyAndAmount{
					Ccy:   common.ActiveCurrencyCode(p.Currency),
					Value: amount,
				},
				IntrBkSttlmDt: (*common.ISODate)(&settlementDate),
				ChrgBr:        "SLEV",
				DbtrAgt: pacs_v08.BranchAndFinancialInstitutionIdentification6{
					FinInstnId: pacs_v08.FinancialInstitutionIdentification18{
						BICFI: &[]common.BICFIDec2014Identifier{common.BICFIDec2014Identifier(platformBIC)}[0],
					},
				},
				Dbtr: pacs_v08.PartyIdentification135{
					Nm: &[]common.Max140Text{common.Max140Text("Facesheet360 CareCoins")}[0],
				},
				CdtrAgt: pacs_v08.BranchAndFinancialInstitutionIdentification6{
					FinInstnId: pacs_v08.FinancialInstitutionIdentification18{
						ClrSysMmbId: &pacs_v08.ClearingSystemMemberIdentification2{
							MmbId: common.Max35Text(bank.RoutingNumber),
						},
					},
				},
				Cdtr: pacs_v08.PartyIdentification135{
					Nm: &[]common.Max140Text{common.Max140Text(bank.AccountHolder)}[0],
				},
			},
		},
	}

	return doc, nil
}

// CreatePacs002 builds a status report for a payout, the message the payout
// rail sends back once it has acted on a pacs.008.
func (iso *ISO20022Service) CreatePacs002(p *models.Payout, status string) (*pacs_v08.FIToFIPaymentStatusReportV08, error) {
	doc := &pacs_v08.FIToFIPaymentStatusReportV08{
		GrpHdr: pacs_v08.GroupHeader53{
			MsgId:   common.Max35Text(p.ExternalReference),
			CreDtTm: common.ISODateTime(time.Now().UTC()),
		},
		TxInfAndSts: []pacs_v08.PaymentTransaction80{
			{
				OrgnlEndToEndId: &[]common.Max35Text{common.Max35Text(p.ExternalReference)}[0],
				OrgnlTxId:       &[]common.Max35Text{common.Max35Text(p.ExternalReference)}[0],
				TxSts:           &[]pacs_v08.ExternalPaymentTransactionStatus1Code{pacs_v08.ExternalPaymentTransactionStatus1Code(status)}[0], // ACCP, RJCT, ACSC, etc.
			},
		},
	}

	return doc, nil
}

// ParsePacs002 extracts the per-transaction statuses from a pacs.002 report.
func (iso *ISO20022Service) ParsePacs002(data []byte) ([]SettlementStatus, error) {
	var doc pacs_v08.FIToFIPaymentStatusReportV08
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidReport, err)
	}

	statuses := make([]SettlementStatus, 0, len(doc.TxInfAndSts))
	for _, tx := range doc.TxInfAndSts {
		if tx.OrgnlEndToEndId == nil || tx.TxSts == nil {
			continue
		}
		statuses = append(statuses, SettlementStatus{
			ExternalReference: string(*tx.OrgnlEndToEndId),
			Status:            string(*tx.TxSts),
		})
	}
	if len(statuses) == 0 {
		return nil, fmt.Errorf("%w: no transaction status", ErrInvalidReport)
	}
	return statuses, nil
}

// ConvertToXML converts ISO20022 document to XML string
func (iso *ISO20022Service) ConvertToXML(doc any) (string, error) {
	xmlData, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal XML: %w", err)
	}
	return xml.Header + string(xmlData), nil
}

// PayoutStatusFromISO maps an ISO 20022 transaction status code onto a payout
// status. Codes that are neither final success nor rejection leave the payout
// pending.
func PayoutStatusFromISO(code string) (models.PayoutStatus, bool) {
	switch code {
	case "ACSC", "ACCP", "ACCC":
		return models.PayoutCompleted, true
	case "RJCT":
		return models.PayoutFailed, true
	}
	return models.PayoutPending, false
}
