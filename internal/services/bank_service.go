package services

import (
	"strings"
)

// Bank is a payout destination in the bank directory.
type Bank struct {
	Code          string `json:"code"`
	Name          string `json:"name"`
	RoutingNumber string `json:"routing_number"`
}

var usBanks = []Bank{
	{Code: "CHASE", Name: "JPMorgan Chase Bank", RoutingNumber: "021000021"},
	{Code: "BOFA", Name: "Bank of America", RoutingNumber: "026009593"},
	{Code: "WF", Name: "Wells Fargo Bank", RoutingNumber: "121000248"},
	{Code: "CITI", Name: "Citibank", RoutingNumber: "021000089"},
	{Code: "USB", Name: "U.S. Bank", RoutingNumber: "091000022"},
	{Code: "PNC", Name: "PNC Bank", RoutingNumber: "043000096"},
	{Code: "TRUIST", Name: "Truist Bank", RoutingNumber: "061000104"},
	{Code: "CAPONE", Name: "Capital One", RoutingNumber: "051405515"},
	{Code: "TD", Name: "TD Bank", RoutingNumber: "031101266"},
	{Code: "FITB", Name: "Fifth Third Bank", RoutingNumber: "042000314"},
}

type BankService struct {
	banks []Bank
}

func NewBankService() *BankService {
	return &BankService{banks: usBanks}
}

// Banks returns a copy of the directory.
func (bs *BankService) Banks() []Bank {
	banks := make([]Bank, len(bs.banks))
	copy(banks, bs.banks)
	return banks
}

func (bs *BankService) Lookup(routingNumber string) (Bank, bool) {
	return lookupBank(bs.banks, routingNumber)
}

func lookupBank(banks []Bank, routingNumber string) (Bank, bool) {
	routingNumber = strings.TrimSpace(routingNumber)
	for _, b := range banks {
		if b.RoutingNumber == routingNumber {
			return b, true
		}
	}
	return Bank{}, false
}

// ValidRoutingNumber checks the ABA routing number checksum.
func ValidRoutingNumber(rn string) bool {
	if len(rn) != 9 {
		return false
	}
	weights := [3]int{3, 7, 1}
	sum := 0
	for i, c := range rn {
		if c < '0' || c > '9' {
			return false
		}
		sum += int(c-'0') * weights[i%3]
	}
	return sum%10 == 0
}
