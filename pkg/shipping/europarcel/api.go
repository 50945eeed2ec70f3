package europarcel

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"

	"github.com/shopspring/decimal"
)

// APIClient defines the Europarcel API operations used by the service.
// Every call carries the API key of the shipping instance it is made for,
// since instances may belong to different Europarcel accounts.
type APIClient interface {
	// GetProfile fetches the account profile behind the key.
	GetProfile(ctx context.Context, apiKey string) (*ProfileResponse, error)

	// ListAddresses fetches the first page (200 entries) of billing or pickup addresses.
	ListAddresses(ctx context.Context, apiKey string, kind AddressKind) (*AddressListResponse, error)

	// GetPrices computes live prices for an order.
	GetPrices(ctx context.Context, apiKey string, req *OrderRequest) (*PricesResponse, error)

	// GetFixedLocations lists the lockers of the given carriers near a locality.
	GetFixedLocations(ctx context.Context, apiKey string, q LocationQuery) (*FixedLocationsResponse, error)

	// CreateOrder places a shipment order.
	CreateOrder(ctx context.Context, apiKey string, req *OrderRequest) (*OrderResponse, error)
}

// AddressKind selects the address book to list.
type AddressKind string

const (
	AddressBilling AddressKind = "billing"
	AddressPickup  AddressKind = "shipping"
)

// ============================================================================
// API Request/Response Types (match Europarcel public API)
// ============================================================================

// Profile is the account profile.
type Profile struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Phone   string `json:"phone"`
	Company string `json:"company,omitempty"`
}

// ProfileResponse wraps GET public/account/profile.
type ProfileResponse struct {
	Data Profile `json:"data"`
}

// Address is one entry of an account address book.
type Address struct {
	ID           int    `json:"id"`
	AddressType  string `json:"address_type"` // "individual" or "business"
	Contact      string `json:"contact"`
	Company      string `json:"company"`
	LocalityName string `json:"locality_name"`
	StreetNo     string `json:"street_no"`
}

// Label renders the address the way it is listed in admin pickers.
func (a Address) Label() string {
	owner := a.Company
	if a.AddressType == "individual" {
		owner = a.Contact
	}
	return owner + ", " + a.LocalityName + ", " + a.StreetNo
}

// AddressListResponse wraps GET public/addresses/{billing,shipping}.
type AddressListResponse struct {
	List []Address `json:"list"`
}

// OrderRequest is the payload shared by POST public/orders/prices and POST public/orders.
type OrderRequest struct {
	CarrierID   int             `json:"carrier_id"`
	ServiceID   int             `json:"service_id"`
	BillingTo   BillingTo       `json:"billing_to"`
	AddressFrom AddressFrom     `json:"address_from"`
	AddressTo   DeliveryAddress `json:"address_to"`
	Content     Content         `json:"content"`
	Extra       Extra           `json:"extra"`
}

// BillingTo selects the billing address of the account.
type BillingTo struct {
	BillingAddressID int `json:"billing_address_id"`
}

// AddressFrom selects the pickup address of the account.
type AddressFrom struct {
	AddressID int `json:"address_id"`
}

// DeliveryAddress is the recipient of the parcel.
type DeliveryAddress struct {
	Email           string `json:"email"`
	Phone           string `json:"phone"`
	Contact         string `json:"contact"`
	Company         string `json:"company"`
	CountryCode     string `json:"country_code"`
	CountyName      string `json:"county_name"`
	LocalityName    string `json:"locality_name"`
	StreetName      string `json:"street_name"`
	StreetNumber    string `json:"street_number"`
	StreetDetails   string `json:"street_details"`
	FixedLocationID string `json:"fixed_location_id,omitempty"`
}

// Content describes what is shipped.
type Content struct {
	EnvelopesCount int      `json:"envelopes_count"`
	PalletsCount   int      `json:"pallets_count"`
	ParcelsCount   int      `json:"parcels_count"`
	TotalWeight    float64  `json:"total_weight"`
	Parcels        []Parcel `json:"parcels"`
}

// Parcel is a single parcel.
type Parcel struct {
	Size       ParcelSize `json:"size"`
	SequenceNo int        `json:"sequence_no"`
}

// ParcelSize holds weight (kg) and dimensions (cm).
type ParcelSize struct {
	Weight float64 `json:"weight"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
	Length float64 `json:"length"`
}

// Extra holds optional services of an order.
type Extra struct {
	SMSSender               bool             `json:"sms_sender"`
	OpenPackage             bool             `json:"open_package"`
	SMSRecipient            bool             `json:"sms_recipient"`
	ParcelContent           string           `json:"parcel_content"`
	InternalIdentifier      string           `json:"internal_identifier"`
	ReturnPackage           bool             `json:"return_package"`
	InsuranceAmount         *decimal.Decimal `json:"insurance_amount"`
	InsuranceAmountCurrency string           `json:"insurance_amount_currency"`
	ReturnOfDocuments       bool             `json:"return_of_documents"`
	BankRepaymentAmount     *decimal.Decimal `json:"bank_repayment_amount"`
	BankRepaymentCurrency   string           `json:"bank_repayment_currency"`
	BankHolder              string           `json:"bank_holder"`
	BankIBAN                string           `json:"bank_iban"`
}

// Price is the price breakdown of a quote.
type Price struct {
	Amount   decimal.Decimal `json:"amount"`
	VAT      decimal.Decimal `json:"vat"`
	Total    decimal.Decimal `json:"total"`
	Currency string          `json:"currency"`
}

// PriceQuote is the price of one carrier service.
type PriceQuote struct {
	CarrierID int    `json:"carrier_id"`
	Carrier   string `json:"carrier"`
	ServiceID int    `json:"service_id"`
	Service   string `json:"service_name"`
	Price     Price  `json:"price"`
}

// PricesResponse wraps POST public/orders/prices.
type PricesResponse struct {
	Data []PriceQuote `json:"data"`
}

// LocationQuery filters GET public/locations/fixedlocations.
type LocationQuery struct {
	CountryCode  string
	CarrierIDs   []int
	LocalityName string
	CountyName   string
}

// FlexibleID accepts both numeric and string identifiers.
type FlexibleID string

// UnmarshalJSON implements json.Unmarshaler.
func (f *FlexibleID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = FlexibleID(s)
		return nil
	}
	if string(b) == "null" {
		*f = ""
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*f = FlexibleID(strings.TrimSpace(n.String()))
	return nil
}

// FixedLocation is a locker as returned by the API.
type FixedLocation struct {
	ID           FlexibleID `json:"id"`
	CarrierID    int        `json:"carrier_id"`
	CarrierName  string     `json:"carrier_name"`
	Name         string     `json:"name"`
	Address      string     `json:"address"`
	LocalityName string     `json:"locality_name"`
	CountyName   string     `json:"county_name"`
	Latitude     float64    `json:"latitude"`
	Longitude    float64    `json:"longitude"`
}

// FixedLocationsResponse wraps GET public/locations/fixedlocations.
type FixedLocationsResponse struct {
	Data []FixedLocation `json:"data"`
}

// CreatedOrder is the order placed by POST public/orders.
type CreatedOrder struct {
	ID          int    `json:"id"`
	AWB         string `json:"awb"`
	CarrierID   int    `json:"carrier_id"`
	ServiceID   int    `json:"service_id"`
	TrackingURL string `json:"tracking_url"`
	Price       Price  `json:"price"`
}

// OrderResponse wraps POST public/orders.
type OrderResponse struct {
	Data CreatedOrder `json:"data"`
}

// errorBody is the error payload returned with non-200 responses.
type errorBody struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}
