package models

import "fmt"

// RoutableConnector is a payment processor addressable by the switch. The set
// is closed: connector names arriving on the wire must parse into it.
type RoutableConnector string

const (
	ConnectorAdyen        RoutableConnector = "adyen"
	ConnectorAirwallex    RoutableConnector = "airwallex"
	ConnectorAuthorizeNet RoutableConnector = "authorizenet"
	ConnectorBraintree    RoutableConnector = "braintree"
	ConnectorCheckout     RoutableConnector = "checkout"
	ConnectorCybersource  RoutableConnector = "cybersource"
	ConnectorKlarna       RoutableConnector = "klarna"
	ConnectorNuvei        RoutableConnector = "nuvei"
	ConnectorPaypal       RoutableConnector = "paypal"
	ConnectorRapyd        RoutableConnector = "rapyd"
	ConnectorRazorpay     RoutableConnector = "razorpay"
	ConnectorStripe       RoutableConnector = "stripe"
	ConnectorWorldpay     RoutableConnector = "worldpay"
	ConnectorXendit       RoutableConnector = "xendit"
)

var routableConnectors = map[RoutableConnector]struct{}{
	ConnectorAdyen:        {},
	ConnectorAirwallex:    {},
	ConnectorAuthorizeNet: {},
	ConnectorBraintree:    {},
	ConnectorCheckout:     {},
	ConnectorCybersource:  {},
	ConnectorKlarna:       {},
	ConnectorNuvei:        {},
	ConnectorPaypal:       {},
	ConnectorRapyd:        {},
	ConnectorRazorpay:     {},
	ConnectorStripe:       {},
	ConnectorWorldpay:     {},
	ConnectorXendit:       {},
}

// ConversionError reports a wire value that does not map into a closed set.
type ConversionError struct {
	Field string
	Value string
}

func (e *ConversionError) Error() string {
	return fmt.Sprintf("cannot convert %q to %s", e.Value, e.Field)
}

func ParseRoutableConnector(s string) (RoutableConnector, error) {
	c := RoutableConnector(s)
	if _, ok := routableConnectors[c]; !ok {
		return "", &ConversionError{Field: "routable_connector", Value: s}
	}
	return c, nil
}

func (c RoutableConnector) Valid() bool {
	_, ok := routableConnectors[c]
	return ok
}

// SelectionKind records whether a choice was configured explicitly by the
// merchant or derived by a routing algorithm.
type SelectionKind string

const (
	SelectionExplicit  SelectionKind = "explicit"
	SelectionAlgorithm SelectionKind = "algorithm"
)

// RoutableConnectorChoice is one ranked attempt candidate. Immutable; produced
// fresh per evaluation and only ever persisted as a configuration default.
type RoutableConnectorChoice struct {
	Connector           RoutableConnector `json:"connector"`
	MerchantConnectorID *string           `json:"merchant_connector_id,omitempty"`
	Kind                SelectionKind     `json:"selection_kind,omitempty"`
}

// ConnectorInfo is the wire twin of RoutableConnectorChoice: raw strings,
// validated on conversion.
type ConnectorInfo struct {
	Connector string  `json:"gateway_name"`
	AccountID *string `json:"gateway_id,omitempty"`
}

func (i ConnectorInfo) ToChoice() (RoutableConnectorChoice, error) {
	connector, err := ParseRoutableConnector(i.Connector)
	if err != nil {
		return RoutableConnectorChoice{}, err
	}
	return RoutableConnectorChoice{
		Connector:           connector,
		MerchantConnectorID: i.AccountID,
		Kind:                SelectionAlgorithm,
	}, nil
}

func (c RoutableConnectorChoice) ToConnectorInfo() ConnectorInfo {
	return ConnectorInfo{
		Connector: string(c.Connector),
		AccountID: c.MerchantConnectorID,
	}
}

// ChoicesFromInfo converts a wire list, failing on the first unknown connector
// rather than silently dropping it.
func ChoicesFromInfo(infos []ConnectorInfo) ([]RoutableConnectorChoice, error) {
	choices := make([]RoutableConnectorChoice, 0, len(infos))
	for _, info := range infos {
		choice, err := info.ToChoice()
		if err != nil {
			return nil, err
		}
		choices = append(choices, choice)
	}
	return choices, nil
}

func ChoicesToInfo(choices []RoutableConnectorChoice) []ConnectorInfo {
	infos := make([]ConnectorInfo, 0, len(choices))
	for _, choice := range choices {
		infos = append(infos, choice.ToConnectorInfo())
	}
	return infos
}
