package validate

import (
	"testing"

	"github.com/loykin/intentrun/internal/records"
	"github.com/loykin/intentrun/internal/result"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var cardUnlock = records.ExpectedRecord{ServiceID: "9", ServiceName: "Desbloqueio de Cartão", Intent: "desbloquear cartão"}

func TestCheck_Match(t *testing.T) {
	v := Check(cardUnlock, []byte(`{"success": true, "data": {"service_id": "9", "service_name": "Desbloqueio de Cartão"}}`))
	assert.True(t, v.OK())
	assert.True(t, v.Validation.ServiceIDMatch)
	assert.True(t, v.Validation.ServiceNameMatch)
	assert.Nil(t, v.Validation.ValidationError)
}

func TestCheck_NumericIDMatches(t *testing.T) {
	v := Check(cardUnlock, []byte(`{"success": true, "data": {"service_id": 9, "service_name": "Desbloqueio de Cartão", "extra": 1}}`))
	assert.True(t, v.OK())
}

func TestCheck_IDMismatch(t *testing.T) {
	v := Check(cardUnlock, []byte(`{"success": true, "data": {"service_id": "7", "service_name": "Desbloqueio de Cartão"}}`))
	require.False(t, v.OK())
	assert.Equal(t, result.KindValidation, v.Kind)
	assert.Contains(t, v.Error, "esperado 9, recebido 7")
	assert.False(t, v.Validation.ServiceIDMatch)
	assert.True(t, v.Validation.ServiceNameMatch)
	require.NotNil(t, v.Validation.ValidationError)
	assert.Equal(t, v.Error, *v.Validation.ValidationError)
}

func TestCheck_BothMismatchJoined(t *testing.T) {
	v := Check(cardUnlock, []byte(`{"success": true, "data": {"service_id": 7, "service_name": "desbloqueio de cartão"}}`))
	assert.Equal(t, "service_id: esperado 9, recebido 7; service_name: esperado 'Desbloqueio de Cartão', recebido 'desbloqueio de cartão'", v.Error)
	assert.Equal(t, result.BucketValidation, v.Kind.Bucket())
}

func TestCheck_APIFailure(t *testing.T) {
	v := Check(cardUnlock, []byte(`{"success": false, "error": "not found"}`))
	assert.Equal(t, result.KindAPIFailure, v.Kind)
	assert.Equal(t, "not found", v.Error)
	assert.Equal(t, result.BucketError, v.Kind.Bucket())

	v = Check(cardUnlock, []byte(`{"data": {"service_id": 9}}`))
	assert.Equal(t, MsgUnknownAPIError, v.Error, "missing success flag counts as failure")
}

func TestCheck_ValidationErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"null data", `{"success": true, "data": null}`, MsgNoData},
		{"no data", `{"success": true}`, MsgNoData},
		{"missing id", `{"success": true, "data": {"service_name": "x"}}`, MsgServiceIDMissing},
		{"non numeric id", `{"success": true, "data": {"service_id": "nove", "service_name": "x"}}`, "service_id inválido na resposta: nove"},
		{"fractional id", `{"success": true, "data": {"service_id": 9.5, "service_name": "x"}}`, "service_id inválido na resposta: 9.5"},
		{"missing name", `{"success": true, "data": {"service_id": 9}}`, MsgServiceNameMissing},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := Check(cardUnlock, []byte(tt.body))
			assert.Equal(t, result.KindValidation, v.Kind)
			assert.Equal(t, tt.want, v.Error)
		})
	}
}

func TestCheck_NonStringNameNeverMatches(t *testing.T) {
	rec := records.ExpectedRecord{ServiceID: "3", ServiceName: "3"}
	v := Check(rec, []byte(`{"success": true, "data": {"service_id": 3, "service_name": 3}}`))
	assert.False(t, v.Validation.ServiceNameMatch)
	assert.Contains(t, v.Error, "recebido '3'")
}

func TestCheck_BadExpectedID(t *testing.T) {
	rec := records.ExpectedRecord{ServiceID: "abc", ServiceName: "x"}
	v := Check(rec, []byte(`{"success": true, "data": {"service_id": 1, "service_name": "x"}}`))
	assert.Equal(t, result.KindUnexpected, v.Kind)
	assert.Equal(t, result.BucketError, v.Kind.Bucket())
}
