package upload

import (
	"bytes"
	"context"
	"errors"
	"io"
	"mime"
	"mime/multipart"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	dErrors "kycdesk/pkg/domain-errors"
	"kycdesk/pkg/requestcontext"
	"kycdesk/pkg/testutil"
)

const folderLink = "https://drive.google.com/drive/folders/1AbCdEfGhIjKlMnOpQrStUvWxYz"

type fakeSink struct {
	mu        sync.Mutex
	folders   map[string]string
	puts      map[string][]byte
	failName  string
	delay     time.Duration
	folderErr error
}

func newFakeSink() *fakeSink {
	return &fakeSink{folders: map[string]string{}, puts: map[string][]byte{}}
}

func (f *fakeSink) EnsureFolder(_ context.Context, parentID, name string) (string, error) {
	if f.folderErr != nil {
		return "", f.folderErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	key := parentID + "/" + name
	if _, ok := f.folders[key]; !ok {
		f.folders[key] = "sub-" + name
	}
	return f.folders[key], nil
}

func (f *fakeSink) Put(ctx context.Context, folderID, name, _ string, body io.Reader) (Stored, error) {
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return Stored{}, ctx.Err()
		}
	}
	if name == f.failName {
		return Stored{}, errors.New("remote rejected file")
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return Stored{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.puts[folderID+"/"+name] = data
	return Stored{ID: name, Link: "https://remote/" + name}, nil
}

type PipelineSuite struct {
	suite.Suite
	dir      string
	sink     *fakeSink
	pipeline *Pipeline
	ctx      context.Context
}

func TestPipelineSuite(t *testing.T) {
	suite.Run(t, new(PipelineSuite))
}

func (s *PipelineSuite) SetupTest() {
	s.dir = s.T().TempDir()
	stager, err := NewStager(s.dir)
	s.Require().NoError(err)
	s.sink = newFakeSink()
	s.pipeline = NewPipeline(s.sink, stager)
	s.ctx = requestcontext.WithTime(context.Background(), time.Date(2026, 4, 9, 8, 0, 0, 0, time.UTC))
}

func (s *PipelineSuite) reader(fields map[string]string, files ...testutil.File) *multipart.Reader {
	body, contentType := testutil.MultipartBody(s.T(), fields, files...)
	_, params, err := mime.ParseMediaType(contentType)
	s.Require().NoError(err)
	return multipart.NewReader(body, params["boundary"])
}

func (s *PipelineSuite) stagedCount() int {
	entries, err := os.ReadDir(s.dir)
	s.Require().NoError(err)
	return len(entries)
}

func (s *PipelineSuite) TestIDUploadEndToEnd() {
	mr := s.reader(map[string]string{"client": "Ada Lovelace"},
		testutil.File{Field: "frontImage", Filename: "front.PNG", Content: testutil.PNG},
		testutil.File{Field: "backImage", Filename: "back.jpg", Content: []byte("jpeg bytes")},
	)
	batch, err := s.pipeline.Stage(s.ctx, IDProfile, mr)
	s.Require().NoError(err)
	s.Equal("Ada Lovelace", batch.Form["client"])
	s.Equal("image/png", batch.Files["frontImage"].ContentType)
	s.Equal(2, s.stagedCount())

	res, err := s.pipeline.Transfer(s.ctx, batch, Destination{FolderLink: folderLink, Client: batch.Form["client"]})
	s.Require().NoError(err)
	s.Equal("Ada_Lovelace", res.Client)
	s.Equal("sub-ID", res.FolderID)
	s.Equal("https://remote/frontIDimage_Ada_Lovelace_2026-04-09.png", res.Links["frontImage"])
	s.Equal("https://remote/backIDimage_Ada_Lovelace_2026-04-09.jpg", res.Links["backImage"])
	s.Len(res.Artifacts, 2)
	s.Equal(testutil.PNG, s.sink.puts["sub-ID/frontIDimage_Ada_Lovelace_2026-04-09.png"])
	s.Zero(s.stagedCount(), "staged files removed after success")
}

func (s *PipelineSuite) TestMissingFieldRemovesStagedFiles() {
	mr := s.reader(nil, testutil.File{Field: "frontImage", Filename: "front.png", Content: testutil.PNG})

	_, err := s.pipeline.Stage(s.ctx, IDProfile, mr)
	s.True(dErrors.HasCode(err, dErrors.CodeBadRequest))
	s.Contains(err.Error(), "backImage")
	de, _ := dErrors.As(err)
	s.Equal(map[string][]string{"missing": {"backImage"}}, de.Details)
	s.Zero(s.stagedCount())
	s.Empty(s.sink.puts)
}

func (s *PipelineSuite) TestRejectsUnsupportedType() {
	mr := s.reader(nil,
		testutil.File{Field: "frontImage", Filename: "front.png", Content: testutil.PNG},
		testutil.File{Field: "backImage", Filename: "back.exe", Content: []byte("MZ")},
	)
	_, err := s.pipeline.Stage(s.ctx, IDProfile, mr)
	s.True(dErrors.HasCode(err, dErrors.CodePayloadInvalid))
	s.Zero(s.stagedCount())
}

func (s *PipelineSuite) TestRejectsUnknownAndDuplicateFields() {
	s.Run("unknown field", func() {
		mr := s.reader(nil, testutil.File{Field: "selfie", Filename: "me.png", Content: testutil.PNG})
		_, err := s.pipeline.Stage(s.ctx, IDProfile, mr)
		s.True(dErrors.HasCode(err, dErrors.CodePayloadInvalid))
	})
	s.Run("duplicate field", func() {
		mr := s.reader(nil,
			testutil.File{Field: "addressProof", Filename: "a.pdf", Content: []byte("%PDF-1.4")},
			testutil.File{Field: "addressProof", Filename: "b.pdf", Content: []byte("%PDF-1.4")},
		)
		_, err := s.pipeline.Stage(s.ctx, AddressProfile, mr)
		s.True(dErrors.HasCode(err, dErrors.CodePayloadInvalid))
		s.Zero(s.stagedCount())
	})
}

func (s *PipelineSuite) TestOversizeFile() {
	profile := AddressProfile
	profile.MaxFileSize = 16
	mr := s.reader(nil, testutil.File{Field: "addressProof", Filename: "a.pdf", Content: bytes.Repeat([]byte("x"), 17)})

	_, err := s.pipeline.Stage(s.ctx, profile, mr)
	s.True(dErrors.HasCode(err, dErrors.CodePayloadTooLarge))
	s.Zero(s.stagedCount())
}

func (s *PipelineSuite) TestSizeAtLimitIsAccepted() {
	profile := AddressProfile
	profile.MaxFileSize = 16
	mr := s.reader(nil, testutil.File{Field: "addressProof", Filename: "a.pdf", Content: bytes.Repeat([]byte("x"), 16)})

	batch, err := s.pipeline.Stage(s.ctx, profile, mr)
	s.Require().NoError(err)
	s.EqualValues(16, batch.Files["addressProof"].Size)
	s.pipeline.Cleanup(s.ctx, batch)
}

func (s *PipelineSuite) TestInvalidFolderLinkCleansUp() {
	mr := s.reader(nil, testutil.File{Field: "addressProof", Filename: "a.pdf", Content: []byte("%PDF-1.4")})
	batch, err := s.pipeline.Stage(s.ctx, AddressProfile, mr)
	s.Require().NoError(err)

	_, err = s.pipeline.Transfer(s.ctx, batch, Destination{FolderLink: "not a link"})
	s.True(dErrors.HasCode(err, dErrors.CodeBadRequest))
	s.Zero(s.stagedCount())
	s.Empty(s.sink.puts)
}

func (s *PipelineSuite) TestPartialFailureReportsEachField() {
	s.sink.failName = "leftpose_unknown_2026-04-09.png"
	mr := s.reader(nil,
		testutil.File{Field: "front_pose", Filename: "f.png", Content: testutil.PNG},
		testutil.File{Field: "left_pose", Filename: "l.png", Content: testutil.PNG},
		testutil.File{Field: "right_pose", Filename: "r.png", Content: testutil.PNG},
		testutil.File{Field: "verification_video", Filename: "v.webm", Content: []byte("webm")},
	)
	batch, err := s.pipeline.Stage(s.ctx, VerificationProfile, mr)
	s.Require().NoError(err)

	_, err = s.pipeline.Transfer(s.ctx, batch, Destination{FolderLink: folderLink})
	s.True(dErrors.HasCode(err, dErrors.CodeUpstreamUnavailable))
	de, _ := dErrors.As(err)
	details := de.Details.(map[string]any)
	s.Equal([]string{"left_pose"}, details["failed"])
	s.Equal([]string{"front_pose", "right_pose", "verification_video"}, details["uploaded"])
	s.Len(s.sink.puts, 3)
	s.Zero(s.stagedCount())
}

func (s *PipelineSuite) TestRemoteCallsAreBounded() {
	s.sink.delay = time.Second
	stager, err := NewStager(s.dir)
	s.Require().NoError(err)
	p := NewPipeline(s.sink, stager, WithRemoteTimeout(20*time.Millisecond))

	mr := s.reader(nil, testutil.File{Field: "addressProof", Filename: "a.pdf", Content: []byte("%PDF-1.4")})
	batch, err := p.Stage(s.ctx, AddressProfile, mr)
	s.Require().NoError(err)
	_, err = p.Transfer(s.ctx, batch, Destination{FolderLink: folderLink})
	s.True(dErrors.HasCode(err, dErrors.CodeUpstreamUnavailable))
}

func (s *PipelineSuite) TestFolderFailureIsUpstream() {
	s.sink.folderErr = errors.New("quota")
	mr := s.reader(nil, testutil.File{Field: "addressProof", Filename: "a.pdf", Content: []byte("%PDF-1.4")})
	batch, err := s.pipeline.Stage(s.ctx, AddressProfile, mr)
	s.Require().NoError(err)
	_, err = s.pipeline.Transfer(s.ctx, batch, Destination{FolderLink: folderLink})
	s.True(dErrors.HasCode(err, dErrors.CodeUpstreamUnavailable))
	s.Zero(s.stagedCount())
}

func (s *PipelineSuite) TestStagedNamesDoNotCollide() {
	stager, err := NewStager(s.dir)
	s.Require().NoError(err)
	field, _ := IDProfile.field("frontImage")
	seen := map[string]bool{}
	for range 200 {
		f, err := stager.Stage(field, "x.png", bytes.NewReader(testutil.PNG), MB)
		s.Require().NoError(err)
		s.False(seen[f.Path])
		seen[f.Path] = true
	}
}
