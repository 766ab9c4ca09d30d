package entity

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/kcmvp/retail/constraint"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMoney_Parse(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"10", "10.00", false},
		{"10.5", "10.50", false},
		{"0.01", "0.01", false},
		{"1234567890.99", "1234567890.99", false},
		{"10.001", "", true},
		{"-1", "", true},
		{"abc", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			m, err := ParseMoney(tt.in)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidMoney)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, m.String())
		})
	}
}

func TestMoney_TimesIsExact(t *testing.T) {
	// 0.10 * 3 drifts in float64
	assert.Equal(t, "0.30", MustMoney("0.10").Times(3).String())
	assert.Equal(t, "30.00", MustMoney("10.00").Times(3).String())
	assert.True(t, MustMoney("19.99").Times(7).Equal(MustMoney("139.93")))
	assert.True(t, MustMoney("5").Times(0).IsZero())
}

func TestMoney_JSON(t *testing.T) {
	b, err := json.Marshal(struct {
		Price Money `json:"price"`
	}{MustMoney("10")})
	require.NoError(t, err)
	assert.JSONEq(t, `{"price":"10.00"}`, string(b))

	var got struct {
		A Money `json:"a"`
		B Money `json:"b"`
		C Money `json:"c"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"a":"2.50","b":7.25,"c":null}`), &got))
	assert.Equal(t, "2.50", got.A.String())
	assert.Equal(t, "7.25", got.B.String())
	assert.True(t, got.C.IsZero())

	require.Error(t, json.Unmarshal([]byte(`{"a":"-2"}`), &got))
	require.Error(t, json.Unmarshal([]byte(`{"a":"x"}`), &got))
}

func TestProduct_WireFormat(t *testing.T) {
	p := Product{ID: "p1", Name: "Mug", Price: MustMoney("10"), StockAvailable: 5, ETag: "v1"}
	b, err := json.Marshal(p)
	require.NoError(t, err)
	assert.JSONEq(t, `{"productId":"p1","productName":"Mug","description":"","price":"10.00","stockAvailable":5,"version":"v1"}`, string(b))
}

func TestEntity_Versioning(t *testing.T) {
	c := Customer{ID: "c1"}
	c2 := c.WithVersion("v2")
	assert.Empty(t, c.Version())
	assert.Equal(t, "v2", c2.Version())
	assert.Equal(t, CustomerCategory, c2.Category())
	assert.Equal(t, "c9", c2.WithKey("c9").Key())

	assert.Equal(t, ProductCategory, Product{}.Category())
	assert.Equal(t, OrderCategory, Order{}.Category())
	assert.Equal(t, AuditCategory, AuditEntry{}.Category())
}

func TestStatus_Transitions(t *testing.T) {
	tests := []struct {
		from, to Status
		ok       bool
	}{
		{Submitted, Processing, true},
		{Submitted, Cancelled, true},
		{Processing, Completed, true},
		{Processing, Cancelled, true},
		{Submitted, Completed, false},
		{Completed, Cancelled, false},
		{Cancelled, Submitted, false},
		{Processing, Submitted, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			err := tt.from.To(tt.to)
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrInvalidTransition)
			}
		})
	}
	assert.True(t, Completed.Terminal())
	assert.True(t, Cancelled.Terminal())
	assert.False(t, Submitted.Terminal())
}

func TestParseStatus(t *testing.T) {
	for _, s := range Statuses() {
		st, err := ParseStatus(s)
		require.NoError(t, err)
		assert.Equal(t, s, string(st))
	}
	_, err := ParseStatus("Shipped")
	assert.ErrorIs(t, err, constraint.ErrNotOneOf)
	_, err = ParseStatus("submitted")
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	assert.NoError(t, Customer{Username: "jd", Email: "jd@example.com"}.Validate())
	assert.ErrorIs(t, Customer{Email: "jd@example.com"}.Validate(), ErrInvalid)
	assert.ErrorIs(t, Product{Name: "Mug", StockAvailable: -1}.Validate(), ErrInvalid)
	assert.ErrorIs(t, Product{StockAvailable: 1}.Validate(), ErrInvalid)
	assert.NoError(t, Product{Name: "Mug"}.Validate())
	assert.ErrorIs(t, Customer{Username: "jd", Email: "not an email"}.Validate(), ErrInvalid)
	assert.NoError(t, Product{Name: "Mug", ImageURL: "product-images/1-mug.png"}.Validate())
	assert.NoError(t, Product{Name: "Mug", ImageURL: "https://cdn.example.com/mug.png"}.Validate())
	assert.ErrorIs(t, Product{Name: "Mug", ImageURL: "https://"}.Validate(), ErrInvalid)
}

func TestValidate_Rules(t *testing.T) {
	tests := []struct {
		name   string
		entity interface{ Validate() error }
		want   error
	}{
		{"username with dots", Customer{Username: "john.doe_42", Email: "jd@example.com"}, nil},
		{"username with space", Customer{Username: "john doe", Email: "jd@example.com"}, constraint.ErrCharSetOnly},
		{"username too long", Customer{Username: strings.Repeat("a", 65), Email: "jd@example.com"}, constraint.ErrLengthBetween},
		{"name too long", Product{Name: strings.Repeat("m", 129)}, constraint.ErrLengthBetween},
		{"negative stock", Product{Name: "Mug", StockAvailable: -1}, constraint.ErrMustGte},
		{"zero stock", Product{Name: "Mug"}, nil},
		{"foreign blob", Product{Name: "Mug", ImageURL: "payment-proofs/1-mug.png"}, constraint.ErrNotMatch},
		{"relative path", Product{Name: "Mug", ImageURL: "/img/mug.png"}, constraint.ErrNotMatch},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			err := test.entity.Validate()
			if test.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, ErrInvalid)
			assert.ErrorIs(t, err, test.want)
		})
	}
}
