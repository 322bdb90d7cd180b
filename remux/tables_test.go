package remux

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gwuhaolin/metaremux/container/ts"
)

func TestProgramMapPIDSkipsNIT(t *testing.T) {
	at := assert.New(t)

	pid, program, ok := ProgramMapPID(buildPAT(1, [2]uint16{0, NITPID}, [2]uint16{4, 0x100}, [2]uint16{5, 0x200}))
	at.True(ok)
	at.Equal(uint16(0x100), pid)
	at.Equal(uint16(4), program)

	_, _, ok = ProgramMapPID(buildPAT(1, [2]uint16{0, NITPID}))
	at.False(ok)

	_, _, ok = ProgramMapPID(buildPAT(1))
	at.False(ok)

	_, _, ok = ProgramMapPID(ts.Section{0x00, 0xb0, 0x01, 0x00})
	at.False(ok)
}

func TestPCRPID(t *testing.T) {
	pid, err := PCRPID(buildPMT(1, 0x1abc, nil))
	require.NoError(t, err)
	assert.Equal(t, uint16(0x1abc), pid)

	_, err = PCRPID(ts.Section{0x02, 0xb0, 0x01, 0x00})
	assert.ErrorIs(t, err, ErrMalformedSection)
}

func TestRewritePATSingle(t *testing.T) {
	at := assert.New(t)
	d := &Discovery{TransportStreamID: 0x1234, ProgramNumber: 0x0055}

	for _, pat := range []ts.Section{
		buildPAT(7, [2]uint16{1, 0x100}),
		buildPAT(9, [2]uint16{0, NITPID}, [2]uint16{2, 0x200}, [2]uint16{3, 0x300}),
	} {
		out, err := RewritePAT(pat, d, PATLayoutSingle, 0x100)
		require.NoError(t, err)
		at.Equal(uint8(ts.TableIDPAT), out.TableID())
		at.Equal(uint16(0x1234), out.TableIDExtension())
		at.Equal(ts.ExtendedHeaderSize+4, out.LoopEnd())
		at.Equal([]byte{0x00, 0x55, 0xe0, RewrittenPMTPID}, []byte(out[ts.ExtendedHeaderSize:out.LoopEnd()]))
		at.Equal(ts.CRC32(out[:out.LoopEnd()]), out.CRC())
		at.Equal(uint32(0), ts.CRC32(out))
		// version and current_next are kept
		at.Equal(pat[5], out[5])
	}
}

func TestRewritePATIsDeterministic(t *testing.T) {
	d := &Discovery{TransportStreamID: 3, ProgramNumber: 4}
	pat := buildPAT(1, [2]uint16{1, 0x100})
	a, err := RewritePAT(pat, d, PATLayoutSingle, 0x100)
	require.NoError(t, err)
	b, err := RewritePAT(pat, d, PATLayoutSingle, 0x100)
	require.NoError(t, err)
	assert.Equal(t, a, b)
	// input is left alone
	assert.Equal(t, buildPAT(1, [2]uint16{1, 0x100}), pat)
}

func TestRewritePATPreserve(t *testing.T) {
	at := assert.New(t)
	d := &Discovery{TransportStreamID: 0x4321, ProgramNumber: 7}

	out, err := RewritePAT(buildPAT(1, [2]uint16{1, 0x100}), d, PATLayoutPreserve, 0x100)
	require.NoError(t, err)
	at.Equal(uint16(0x4321), out.TableIDExtension())
	at.Equal([]byte{0x00, 0x00, 0xe0, 0x10, 0x00, 0x07, 0xe1, 0x00}, []byte(out[ts.ExtendedHeaderSize:out.LoopEnd()]))
	at.Equal(uint32(0), ts.CRC32(out))

	pid, program, ok := ProgramMapPID(out)
	at.True(ok)
	at.Equal(uint16(0x100), pid)
	at.Equal(uint16(7), program)
}

func TestRewritePATMalformed(t *testing.T) {
	_, err := RewritePAT(ts.Section{0x00, 0xb0, 0x02, 0x00, 0x01}, &Discovery{}, PATLayoutSingle, 0)
	assert.ErrorIs(t, err, ErrMalformedSection)
}

func TestRewritePMTAppendsSorted(t *testing.T) {
	at := assert.New(t)
	programInfo := []byte{0x09, 0x02, 0xaa, 0xbb}
	video := StreamEntry{StreamType: 0x1b, PID: 0x101, Descriptors: []byte{0x0a, 0x01, 0x00}}
	pmt := buildPMT(1, 0x101, programInfo, video)

	d := &Discovery{
		ProgramNumber: 0x0077,
		Streams: map[uint16]ReplacementStream{
			0x0a: {StreamType: StreamTypeDataCarousel, PID: 30},
			0x0b: {StreamType: StreamTypeSynchronizedData, PID: 10, Descriptors: syncDataDescriptor},
			0x0c: {StreamType: StreamTypeDataCarousel, PID: 20, Descriptors: []byte{0x13, 0x00}},
		},
	}

	out, err := RewritePMT(pmt, d)
	require.NoError(t, err)
	at.Equal(uint16(0x0077), out.TableIDExtension())
	at.Equal(uint32(0), ts.CRC32(out))

	pcr, err := PCRPID(out)
	require.NoError(t, err)
	at.Equal(uint16(0x101), pcr)
	at.Equal(programInfo, []byte(out[ts.ExtendedHeaderSize+4:ts.ExtendedHeaderSize+4+len(programInfo)]))

	entries, err := ParseStreams(out)
	require.NoError(t, err)
	require.Len(t, entries, 4)
	at.Equal(video, entries[0])
	at.Equal(uint16(10), entries[1].PID)
	at.Equal(uint16(20), entries[2].PID)
	at.Equal(uint16(30), entries[3].PID)
	at.Equal(uint8(StreamTypeSynchronizedData), entries[1].StreamType)
	at.Equal(syncDataDescriptor, entries[1].Descriptors)
	at.Equal([]byte{0x13, 0x00}, entries[2].Descriptors)
	at.Empty(entries[3].Descriptors)

	// reserved bits on the appended entries
	at.Equal(byte(0xe0), out[len(out)-4-5+1]&0xe0)
	at.Equal(byte(0xf0), out[len(out)-4-5+3]&0xf0)
}

func TestRewritePMTWithoutReplacements(t *testing.T) {
	pmt := buildPMT(1, 0x101, nil, StreamEntry{StreamType: 0x1b, PID: 0x101})
	out, err := RewritePMT(pmt, &Discovery{ProgramNumber: 1})
	require.NoError(t, err)
	assert.Equal(t, pmt, out)
}

func TestRewritePMTMalformed(t *testing.T) {
	// ES_info_length of 0x32 with no descriptor bytes behind it
	bad := mustSeal(ts.Section{ts.TableIDPMT, 0xb0, 0x00, 0x00, 0x01, 0xc1, 0x00, 0x00,
		0xe1, 0x01, 0xf0, 0x00,
		0x1b, 0xe1, 0x01, 0xf0, 0x32})
	_, err := RewritePMT(bad, &Discovery{})
	assert.ErrorIs(t, err, ErrMalformedSection)

	// program_info_length past the end
	bad = mustSeal(ts.Section{ts.TableIDPMT, 0xb0, 0x00, 0x00, 0x01, 0xc1, 0x00, 0x00,
		0xe1, 0x01, 0xf0, 0x40})
	_, err = RewritePMT(bad, &Discovery{})
	assert.ErrorIs(t, err, ErrMalformedSection)

	_, err = RewritePMT(ts.Section{0x02, 0xb0, 0x01, 0x00}, &Discovery{})
	assert.ErrorIs(t, err, ErrMalformedSection)
}

func TestQualifies(t *testing.T) {
	for _, tc := range []struct {
		name        string
		streamType  uint8
		descriptors []byte
		want        bool
	}{
		{"carousel", StreamTypeDataCarousel, nil, true},
		{"carousel with descriptors", StreamTypeDataCarousel, []byte{0x13, 0x00}, true},
		{"synchronized data", StreamTypeSynchronizedData, syncDataDescriptor, true},
		{"synchronized data after another descriptor", StreamTypeSynchronizedData, []byte{0x0a, 0x03, 0x65, 0x6e, 0x67, 0x52, 0x01, 0x38}, true},
		{"other component tag", StreamTypeSynchronizedData, []byte{0x52, 0x01, 0x39}, false},
		{"no descriptors", StreamTypeSynchronizedData, nil, false},
		{"empty stream identifier", StreamTypeSynchronizedData, []byte{0x52, 0x00}, false},
		{"truncated descriptor", StreamTypeSynchronizedData, []byte{0x52}, false},
		{"tag value in another descriptor body", StreamTypeSynchronizedData, []byte{0x0a, 0x03, 0x52, 0x01, 0x38}, false},
		{"video", 0x1b, syncDataDescriptor, false},
	} {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Qualifies(tc.streamType, tc.descriptors))
		})
	}
}

func TestDiscoverySorted(t *testing.T) {
	d := &Discovery{Streams: map[uint16]ReplacementStream{
		1: {PID: 30}, 2: {PID: 10}, 3: {PID: 20},
	}}
	var got []uint16
	for _, rs := range d.Sorted() {
		got = append(got, rs.PID)
	}
	assert.Equal(t, []uint16{10, 20, 30}, got)
}
