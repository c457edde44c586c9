package attr

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func int64p(v int64) *int64 { return &v }
func boolp(v bool) *bool    { return &v }

func sampleInstances(t *testing.T) []*Instance {
	t.Helper()

	from := time.Date(2024, 5, 20, 12, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 0, 14)

	return []*Instance{
		{MachineName: "title", Kind: KindText, Text: "Catan"},
		{MachineName: "body", Kind: KindHTMLText, Text: "<p>Trade, build, settle.</p>"},
		{MachineName: "name", Kind: KindLocalizedText, Localized: LocalizedString{
			{CultureID: 1033, Value: "Settlers"},
			{CultureID: 1031, Value: "Siedler"},
		}},
		{MachineName: "players_min", Kind: KindNumber, Number: float(3)},
		{MachineName: "in_print", Kind: KindBoolean, Boolean: boolp(true)},
		{MachineName: "availability", Kind: KindDateRange, From: &from, To: &to},
		{MachineName: "price", Kind: KindMoney, Amount: float(49.95), CurrencyID: uuid.New()},
		{MachineName: "complexity", Kind: KindValueFromList, OptionMachineName: "medium"},
		{MachineName: "rulebook", Kind: KindFile, URL: "https://cdn.example.com/rules.pdf", Filename: "rules.pdf"},
		{MachineName: "cover", Kind: KindImage, URL: "https://cdn.example.com/cover.jpg", Title: "Box cover", Alt: "The game box"},
		{MachineName: "publisher", Kind: KindEntityReference, ReferenceID: uuid.New()},
		{MachineName: "tags", Kind: KindArray, Elements: []*Instance{
			{MachineName: "tags", Kind: KindText, Text: "strategy"},
			{MachineName: "tags", Kind: KindText, Text: "family"},
		}},
		{MachineName: "sku", Kind: KindSerial, Serial: int64p(105)},
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	// Encoding then decoding must preserve the extracted value for every
	// supported kind.
	for _, original := range sampleInstances(t) {
		t.Run(original.Kind.String(), func(t *testing.T) {
			encoded := Encode(original)
			require.Equal(t, original.Kind.String(), encoded["valueType"])

			decoded, err := DecodeTagged(encoded)
			require.NoError(t, err)

			assert.Equal(t, original.MachineName, decoded.MachineName)
			assert.Equal(t, original.Value(), decoded.Value())
		})
	}
}

func TestDecodeTaggedRejectsUnknownKind(t *testing.T) {
	_, err := DecodeTagged(map[string]interface{}{"valueType": "hologram"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown attribute kind")

	_, err = DecodeTagged(map[string]interface{}{"machineName": "untagged"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "valueType")
}

func TestDecodeValueLocalizedText(t *testing.T) {
	cfg := minimalConfig(KindLocalizedText)

	t.Run("bare string uses fallback culture", func(t *testing.T) {
		inst, err := DecodeValue(cfg, "Chess")
		require.NoError(t, err)
		require.Len(t, inst.Localized, 1)
		assert.Equal(t, FallbackCultureID, inst.Localized[0].CultureID)
		assert.Equal(t, "Chess", inst.Localized[0].Value)
	})

	t.Run("map keyed by culture tag", func(t *testing.T) {
		inst, err := DecodeValue(cfg, map[string]interface{}{
			"de-DE": "Schach",
			"en-US": "Chess",
		})
		require.NoError(t, err)
		require.Len(t, inst.Localized, 2)

		v, ok := inst.Localized.Get(1031)
		require.True(t, ok)
		assert.Equal(t, "Schach", v)
	})

	t.Run("map keyed by numeric LCID", func(t *testing.T) {
		inst, err := DecodeValue(cfg, map[string]interface{}{"1063": "Šachmatai"})
		require.NoError(t, err)
		v, ok := inst.Localized.Get(1063)
		require.True(t, ok)
		assert.Equal(t, "Šachmatai", v)
	})

	t.Run("unknown culture tag rejected", func(t *testing.T) {
		_, err := DecodeValue(cfg, map[string]interface{}{"xx-XX": "?"})
		require.Error(t, err)
	})
}

func TestDecodeValueDateRange(t *testing.T) {
	cfg := minimalConfig(KindDateRange)

	t.Run("from required", func(t *testing.T) {
		_, err := DecodeValue(cfg, map[string]interface{}{"to": "2024-06-01T00:00:00Z"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "requires a valid from")
	})

	t.Run("null to tolerated", func(t *testing.T) {
		inst, err := DecodeValue(cfg, map[string]interface{}{
			"from": "2024-06-01T00:00:00Z",
			"to":   nil,
		})
		require.NoError(t, err)
		require.NotNil(t, inst.From)
		assert.Nil(t, inst.To)
	})

	t.Run("missing to tolerated", func(t *testing.T) {
		inst, err := DecodeValue(cfg, map[string]interface{}{"from": "2024-06-01T00:00:00Z"})
		require.NoError(t, err)
		assert.Nil(t, inst.To)
	})
}

func TestDecodeValueArrayShortCircuits(t *testing.T) {
	cfg := minimalConfig(KindArray)

	_, err := DecodeValue(cfg, []interface{}{float64(1), "not a number", float64(3)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "element 1")

	inst, err := DecodeValue(cfg, []interface{}{float64(1), float64(2)})
	require.NoError(t, err)
	require.Len(t, inst.Elements, 2)

	_, err = DecodeValue(cfg, "not a sequence")
	require.Error(t, err)
}

func TestDecodeValueSerialRejected(t *testing.T) {
	cfg := minimalConfig(KindSerial)

	inst, err := DecodeValue(cfg, nil)
	require.NoError(t, err)
	assert.Nil(t, inst)

	_, err = DecodeValue(cfg, float64(42))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "generated")
}

func TestDecodeValueMoneyDefaultsCurrency(t *testing.T) {
	cfg := minimalConfig(KindMoney)

	inst, err := DecodeValue(cfg, map[string]interface{}{"amount": float64(12.5)})
	require.NoError(t, err)
	assert.Equal(t, cfg.DefaultCurrencyID, inst.CurrencyID)

	other := cfg.Currencies[1].ID
	inst, err = DecodeValue(cfg, map[string]interface{}{
		"amount":     float64(12.5),
		"currencyId": other.String(),
	})
	require.NoError(t, err)
	assert.Equal(t, other, inst.CurrencyID)
}

func TestConfigurationCodecRoundTrip(t *testing.T) {
	for _, kind := range Kinds() {
		t.Run(kind.String(), func(t *testing.T) {
			original := minimalConfig(kind)
			if kind == KindNumber {
				original.Subtype = NumberDecimal
				original.Minimum = float(1)
				original.Maximum = float(10)
			}

			decoded, err := DecodeConfiguration(EncodeConfiguration(original))
			require.NoError(t, err)

			assert.Equal(t, original.Kind, decoded.Kind)
			assert.Equal(t, original.MachineName, decoded.MachineName)
			assert.Equal(t, original.Required, decoded.Required)
			assert.Equal(t, original.Name, decoded.Name)

			switch kind {
			case KindNumber:
				assert.Equal(t, original.Subtype, decoded.Subtype)
				assert.Equal(t, original.Minimum, decoded.Minimum)
				assert.Equal(t, original.Maximum, decoded.Maximum)
			case KindValueFromList:
				assert.Equal(t, original.Options, decoded.Options)
			case KindMoney:
				assert.Equal(t, original.Currencies, decoded.Currencies)
				assert.Equal(t, original.DefaultCurrencyID, decoded.DefaultCurrencyID)
			case KindSerial:
				assert.Equal(t, original.StartingNumber, decoded.StartingNumber)
				assert.Equal(t, original.Increment, decoded.Increment)
			case KindArray:
				require.NotNil(t, decoded.Element)
				assert.Equal(t, original.Element.Kind, decoded.Element.Kind)
			}
		})
	}
}
