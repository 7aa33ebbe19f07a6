package records

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = "service_id;service_name;intent\n" +
	"9;Desbloqueio de Cartão;quero desbloquear meu cartão\n" +
	"1;Consulta Limite / Vencimento do cartão / Melhor dia de compra;   \n" +
	"2;Segunda via de boleto de acordo;  preciso do boleto do acordo \n"

func TestRead_SkipsBlankIntents(t *testing.T) {
	recs, err := Read(strings.NewReader(sample))
	require.NoError(t, err)
	require.Len(t, recs, 2)

	assert.Equal(t, ExpectedRecord{ServiceID: "9", ServiceName: "Desbloqueio de Cartão", Intent: "quero desbloquear meu cartão"}, recs[0])
	assert.Equal(t, "preciso do boleto do acordo", recs[1].Intent, "intent is trimmed")
}

func TestRead_HeaderOrderAndBOM(t *testing.T) {
	in := "\uFEFFintent;service_name;service_id\nperdi meu cartão;Cancelamento de cartão;5\n"
	recs, err := Read(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "5", recs[0].ServiceID)
	assert.Equal(t, "Cancelamento de cartão", recs[0].ServiceName)
}

func TestRead_MissingColumns(t *testing.T) {
	_, err := Read(strings.NewReader("id;name;intent\n1;x;y\n"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrParse))
	assert.Contains(t, err.Error(), "service_id")
}

func TestRead_EmptyInput(t *testing.T) {
	_, err := Read(strings.NewReader(""))
	assert.ErrorIs(t, err, ErrParse)
}

func TestReadFile_NotFound(t *testing.T) {
	_, err := ReadFile(filepath.Join(t.TempDir(), "missing.csv"))
	assert.ErrorIs(t, err, ErrFileNotFound)
}

func TestReadFile_ShortRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "intents.csv")
	require.NoError(t, os.WriteFile(path, []byte("service_id;service_name;intent\n3\n4;Nome;texto\n"), 0o600))

	recs, err := ReadFile(path)
	require.NoError(t, err)
	require.Len(t, recs, 1, "row without intent column is treated as blank")
	assert.Equal(t, "4", recs[0].ServiceID)
}
