package topology

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

const campusXML = `<?xml version="1.0" encoding="UTF-8"?>
<xml>
  <group name="Campus Nord">
    <group name="ST-01" type="Station">
      <group name="B-101" type="Gebaeude">
        <meter name="M1" wandlerfaktor="40" aggregate="true" StdId="7" AKS="A.1" Messstellenbezeichnung="Hall A" Kommentar="main feed"/>
        <meter name="M2" aggregate="0"/>
      </group>
      <group name="Wing">
        <group name="B-102" type="Gebaeude">
          <meter>
            <name>M3</name>
            <wandlerfaktor>2,5</wandlerfaktor>
            <aggregate>TRUE</aggregate>
          </meter>
        </group>
      </group>
    </group>
    <group name="B-200" type="Gebaeude">
      <meter name="M4"/>
    </group>
  </group>
  <group>
    <name>ST-02</name>
    <type>Station</type>
    <group name="B-300" type="Gebaeude">
      <meter name="M5" wandlerfaktor="1"/>
    </group>
  </group>
</xml>`

func TestParse_Layout(t *testing.T) {
	idx, err := Parse(strings.NewReader(campusXML))
	require.NoError(t, err)

	require.Len(t, idx.Meters, 5)
	require.Len(t, idx.Buildings, 4)
	require.Len(t, idx.Stations, 2)

	st1, ok := idx.Station("ST-01")
	require.True(t, ok)
	assert.Equal(t, []string{"M1", "M2", "M3"}, st1.Meters)
	assert.Equal(t, []string{"B-101", "B-102"}, st1.Buildings)

	st2, ok := idx.Station("ST-02")
	require.True(t, ok)
	assert.Equal(t, []string{"M5"}, st2.Meters)

	b, ok := idx.Building("B-102")
	require.True(t, ok)
	assert.Equal(t, "ST-01", b.StationID)
	assert.Equal(t, []string{"M3"}, b.Meters)

	orphan, ok := idx.Building("B-200")
	require.True(t, ok)
	assert.Empty(t, orphan.StationID)
}

func TestParse_MeterFields(t *testing.T) {
	idx, err := Parse(strings.NewReader(campusXML))
	require.NoError(t, err)

	m1, ok := idx.Meter("M1")
	require.True(t, ok)
	assert.Equal(t, "ST-01", m1.StationID)
	assert.Equal(t, "B-101", m1.BuildingID)
	require.NotNil(t, m1.Wandlerfaktor)
	assert.Equal(t, 40.0, *m1.Wandlerfaktor)
	require.NotNil(t, m1.Aggregate)
	assert.True(t, *m1.Aggregate)
	require.NotNil(t, m1.StdID)
	assert.Equal(t, 7.0, *m1.StdID)
	assert.Equal(t, "A.1", m1.AKS)
	assert.Equal(t, "Hall A", m1.Label)
	assert.Equal(t, "main feed", m1.Notes)

	m2, _ := idx.Meter("M2")
	require.NotNil(t, m2.Aggregate)
	assert.False(t, *m2.Aggregate)
	assert.Nil(t, m2.Wandlerfaktor)

	// element form; a comma decimal is not a number here
	m3, ok := idx.Meter("M3")
	require.True(t, ok)
	assert.Nil(t, m3.Wandlerfaktor)
	require.NotNil(t, m3.Aggregate)
	assert.True(t, *m3.Aggregate)
}

func TestIndex_StationOf(t *testing.T) {
	idx, err := Parse(strings.NewReader(campusXML))
	require.NoError(t, err)

	st, ok := idx.StationOf("M3")
	assert.True(t, ok)
	assert.Equal(t, "ST-01", st)

	_, ok = idx.StationOf("M4")
	assert.False(t, ok)
	_, ok = idx.StationOf("unknown")
	assert.False(t, ok)
}

func TestParse_SingleGroupRoot(t *testing.T) {
	idx, err := Parse(strings.NewReader(`<group name="S" type="Station"><group name="B" type="Gebaeude"><meter name="X"/></group></group>`))
	require.NoError(t, err)
	assert.Len(t, idx.Stations, 1)
	assert.Len(t, idx.Meters, 1)
}

func TestParse_Malformed(t *testing.T) {
	_, err := Parse(strings.NewReader(`<xml><group name="S"`))
	assert.Error(t, err)
}

func TestLoad_MissingFile(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	idx := Load(filepath.Join(t.TempDir(), "missing.xml"), zap.New(core))

	assert.Empty(t, idx.Meters)
	assert.NotNil(t, idx.Buildings)
	_, ok := idx.Meter("M1")
	assert.False(t, ok)
	assert.Equal(t, 1, logs.FilterLevelExact(zapcore.WarnLevel).Len())
}

func TestLoad_MalformedFileIsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.xml")
	require.NoError(t, os.WriteFile(path, []byte("<xml><group"), 0o644))

	core, logs := observer.New(zapcore.InfoLevel)
	idx := Load(path, zap.New(core))

	assert.Empty(t, idx.Stations)
	assert.Equal(t, 1, logs.FilterLevelExact(zapcore.ErrorLevel).Len())
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "KIT_CN.xml")
	require.NoError(t, os.WriteFile(path, []byte(campusXML), 0o644))

	idx := Load(path, nil)
	assert.Len(t, idx.Meters, 5)
}
