package identity

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"laporan_ramadhan/utils"

	"github.com/sirupsen/logrus"
)

const (
	msgNISRequired          = "Parameter nis wajib diisi"
	msgStudentNotFound      = "Siswa tidak ditemukan"
	msgStudentDataNotFound  = "Data siswa tidak ditemukan"
	msgInvalidIdentityShape = "Format respons identitas tidak valid"
	msgInvalidStudentShape  = "Format data siswa tidak valid"
	msgIncompleteStudent    = "Data siswa belum lengkap pada layanan identitas"
	msgIdentityUnreachable  = "Gagal mengambil data dari layanan identitas"
	msgIdentityNotSet       = "IDENTITY_API_URL belum dikonfigurasi"
)

// StudentIdentity is the canonical student record from the identity service.
type StudentIdentity struct {
	NIS      string `json:"nis"`
	Fullname string `json:"fullname"`
	Rombel   string `json:"rombel"`
}

// StudentLookup resolves a NIS to a student identity.
type StudentLookup interface {
	Lookup(ctx context.Context, nis string) (*StudentIdentity, error)
}

// HTTPStudentLookup queries the identity service with ?nis=.
type HTTPStudentLookup struct {
	client   *http.Client
	endpoint string
}

func NewHTTPStudentLookup(endpoint string, timeout time.Duration) *HTTPStudentLookup {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &HTTPStudentLookup{client: &http.Client{Timeout: timeout}, endpoint: endpoint}
}

type studentEnvelope struct {
	Success interface{}     `json:"success"`
	Data    json.RawMessage `json:"data"`
}

type studentData struct {
	Fullname    interface{} `json:"fullname"`
	NIPD        interface{} `json:"nipd"`
	RombelAktif interface{} `json:"rombel_aktif"`
}

func (l *HTTPStudentLookup) Lookup(ctx context.Context, nis string) (*StudentIdentity, error) {
	nis = strings.TrimSpace(nis)
	if nis == "" {
		return nil, utils.ValidationError(msgNISRequired)
	}
	if l.endpoint == "" {
		return nil, utils.InternalError(msgIdentityNotSet)
	}

	endpoint, err := url.Parse(l.endpoint)
	if err != nil {
		return nil, utils.InternalError(msgIdentityNotSet).Wrap(err)
	}
	q := endpoint.Query()
	q.Set("nis", nis)
	endpoint.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return nil, utils.InternalError(msgIdentityNotSet).Wrap(err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := l.client.Do(req)
	if err != nil {
		logrus.WithError(err).WithField("timeout", isTimeout(err)).Warn("Identity student lookup failed")
		return nil, utils.UpstreamError(http.StatusBadGateway, msgIdentityUnreachable).Wrap(err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, utils.UpstreamError(http.StatusBadGateway, msgIdentityUnreachable).Wrap(err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, utils.UpstreamError(resp.StatusCode, upstreamMessage(raw, "error", msgStudentDataNotFound))
	}

	return parseStudent(raw, nis)
}

func parseStudent(raw []byte, nis string) (*StudentIdentity, error) {
	var env studentEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, utils.UpstreamError(http.StatusBadGateway, msgInvalidIdentityShape).Wrap(err)
	}
	if ok, _ := env.Success.(bool); !ok {
		return nil, utils.NotFoundError(msgStudentDataNotFound)
	}

	var data studentData
	if len(env.Data) == 0 || string(env.Data) == "null" || json.Unmarshal(env.Data, &data) != nil {
		return nil, utils.UpstreamError(http.StatusBadGateway, msgInvalidStudentShape)
	}

	fullname, _ := data.Fullname.(string)
	normalizedNIS, ok := data.NIPD.(string)
	if !ok {
		normalizedNIS = nis
	}

	rombel := ""
	if list, ok := data.RombelAktif.([]interface{}); ok && len(list) > 0 {
		if first, ok := list[0].(map[string]interface{}); ok {
			rombel, _ = first["nama"].(string)
		}
	}

	if fullname == "" || rombel == "" {
		return nil, utils.UpstreamError(http.StatusBadGateway, msgIncompleteStudent)
	}

	return &StudentIdentity{NIS: normalizedNIS, Fullname: fullname, Rombel: rombel}, nil
}

// MockStudentLookup serves a fixed roster for development and tests.
type MockStudentLookup struct {
	students map[string]StudentIdentity
}

// NewMockStudentLookup returns the default development roster, or the given students.
func NewMockStudentLookup(students ...StudentIdentity) *MockStudentLookup {
	if len(students) == 0 {
		students = []StudentIdentity{
			{NIS: "12345", Fullname: "Ahmad Rizky", Rombel: "XII TKJ 1"},
			{NIS: "67890", Fullname: "Siti Aminah", Rombel: "XI RPL 2"},
			{NIS: "11111", Fullname: "Budi Santoso", Rombel: "X AKL 1"},
			{NIS: "22222", Fullname: "Dewi Lestari", Rombel: "XII MM 2"},
			{NIS: "125261", Fullname: "Rina Amelia", Rombel: "XII TKJ 2"},
		}
	}
	m := &MockStudentLookup{students: make(map[string]StudentIdentity, len(students))}
	for _, s := range students {
		m.students[s.NIS] = s
	}
	return m
}

func (m *MockStudentLookup) Lookup(_ context.Context, nis string) (*StudentIdentity, error) {
	nis = strings.TrimSpace(nis)
	if nis == "" {
		return nil, utils.ValidationError(msgNISRequired)
	}
	s, ok := m.students[nis]
	if !ok {
		return nil, utils.NotFoundError(msgStudentNotFound)
	}
	return &s, nil
}

// Students returns the roster ordered by NIS.
func (m *MockStudentLookup) Students() []StudentIdentity {
	out := make([]StudentIdentity, 0, len(m.students))
	for _, s := range m.students {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].NIS < out[j].NIS })
	return out
}
