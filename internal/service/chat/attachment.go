package chat

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"realtime_chat_server/internal/dto/request"
	"realtime_chat_server/internal/dto/respond"
	"realtime_chat_server/internal/model"
	"realtime_chat_server/pkg/errorx"
	"realtime_chat_server/pkg/util/random"
	"realtime_chat_server/pkg/util/snowflake"

	"go.uber.org/zap"
)

// StoredFile 文件存储返回的元数据
type StoredFile struct {
	Url      string
	FileType string
	Size     int64
}

// FileStash 附件文件存储
type FileStash interface {
	// Save 保存上传的文件，返回可访问地址
	Save(ctx context.Context, fileName string, src io.Reader) (*StoredFile, error)
	// Remove 删除由本存储保存的文件，不属于本存储的地址直接忽略
	Remove(ctx context.Context, fileUrl string) error
}

// LocalFileStash 本地磁盘存储，文件通过 gin 静态路由对外提供
type LocalFileStash struct {
	dir       string
	urlPrefix string
}

// NewLocalFileStash dir 为磁盘目录，urlPrefix 为对外访问前缀（如 /static/files）
func NewLocalFileStash(dir, urlPrefix string) *LocalFileStash {
	return &LocalFileStash{dir: dir, urlPrefix: strings.TrimSuffix(urlPrefix, "/")}
}

// Save 先读取前 512 字节做 Magic Bytes 类型识别，再整体写入磁盘
func (l *LocalFileStash) Save(_ context.Context, fileName string, src io.Reader) (*StoredFile, error) {
	if err := os.MkdirAll(l.dir, 0o755); err != nil {
		return nil, err
	}

	head := make([]byte, 512)
	n, err := io.ReadFull(src, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return nil, err
	}
	head = head[:n]
	contentType := http.DetectContentType(head)

	ext := strings.ToLower(filepath.Ext(fileName))
	newFileName := random.GetNowAndLenRandomString(10) + ext
	dst := filepath.Join(l.dir, newFileName)

	out, err := os.Create(dst)
	if err != nil {
		return nil, err
	}
	defer out.Close()

	size, err := io.Copy(out, io.MultiReader(bytes.NewReader(head), src))
	if err != nil {
		_ = os.Remove(dst)
		return nil, err
	}
	return &StoredFile{
		Url:      l.urlPrefix + "/" + newFileName,
		FileType: contentType,
		Size:     size,
	}, nil
}

// Remove 删除本地文件，文件已不存在时不报错
func (l *LocalFileStash) Remove(_ context.Context, fileUrl string) error {
	if !strings.HasPrefix(fileUrl, l.urlPrefix+"/") {
		return nil
	}
	name := path.Base(fileUrl)
	if err := os.Remove(filepath.Join(l.dir, name)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// UploadAttachment 保存上传文件并登记为暂存附件
func (s *Service) UploadAttachment(ctx context.Context, uploaderId, fileName string, size int64, src io.Reader) (*respond.AttachmentRespond, error) {
	if s.opts.Stash == nil {
		return nil, errorx.Validation("未配置文件存储，请使用 /attachment/stage 登记附件")
	}
	if fileName == "" {
		return nil, errorx.Validation("文件名不能为空")
	}
	if s.opts.MaxFileSize > 0 && size > s.opts.MaxFileSize {
		return nil, errorx.Validation("文件大小不能超过 %d 字节", s.opts.MaxFileSize)
	}

	stored, err := s.opts.Stash.Save(ctx, fileName, src)
	if err != nil {
		zap.L().Error("save upload failed", zap.String("uploader_id", uploaderId), zap.String("file_name", fileName), zap.Error(err))
		return nil, errorx.Wrap(err, errorx.CodeServerBusy, "保存文件失败")
	}
	staged, err := s.stage(ctx, uploaderId, request.StageAttachmentRequest{
		FileName: filepath.Base(fileName),
		FileUrl:  stored.Url,
		FileType: stored.FileType,
		FileSize: stored.Size,
	})
	if err != nil {
		_ = s.opts.Stash.Remove(ctx, stored.Url)
		return nil, err
	}
	return staged, nil
}

// StageAttachment 登记由外部存储上传完成的附件
func (s *Service) StageAttachment(ctx context.Context, uploaderId string, req request.StageAttachmentRequest) (*respond.AttachmentRespond, error) {
	if strings.TrimSpace(req.FileName) == "" || strings.TrimSpace(req.FileUrl) == "" {
		return nil, errorx.Validation("文件名和地址不能为空")
	}
	if req.FileSize < 0 {
		return nil, errorx.Validation("文件大小不合法")
	}
	return s.stage(ctx, uploaderId, req)
}

func (s *Service) stage(ctx context.Context, uploaderId string, req request.StageAttachmentRequest) (*respond.AttachmentRespond, error) {
	staged := &model.StagedAttachment{
		Uuid:         snowflake.NewID("A"),
		UploaderId:   uploaderId,
		FileName:     req.FileName,
		FileUrl:      req.FileUrl,
		FileType:     req.FileType,
		FileSize:     req.FileSize,
		ThumbnailUrl: req.ThumbnailUrl,
		CreatedAt:    s.clock(),
	}
	if err := s.repos.Attachment.CreateStaged(ctx, staged); err != nil {
		zap.L().Error("stage attachment failed", zap.String("uploader_id", uploaderId), zap.Error(err))
		return nil, err
	}
	return stagedToRespond(staged), nil
}

// reclaimBatch 每批回收的暂存附件数
const reclaimBatch = 200

// ReclaimStagedAttachments 回收超过保留时长仍未绑定的暂存附件，返回回收数量
func (s *Service) ReclaimStagedAttachments(ctx context.Context) (int, error) {
	if s.opts.StagedAttachmentTTL <= 0 {
		return 0, nil
	}
	cutoff := s.clock().Add(-s.opts.StagedAttachmentTTL)
	total := 0
	for {
		stale, err := s.repos.Attachment.FindStagedBefore(ctx, cutoff, reclaimBatch)
		if err != nil {
			return total, err
		}
		if len(stale) == 0 {
			return total, nil
		}
		// 逐条删除，只清理确实由本次回收删除的记录对应的文件
		// 期间被发送消息绑定的附件删除行数为 0，文件保留
		for _, st := range stale {
			n, err := s.repos.Attachment.DeleteStaged(ctx, []string{st.Uuid})
			if err != nil {
				return total, err
			}
			if n == 0 {
				continue
			}
			total++
			if s.opts.Stash != nil {
				if err := s.opts.Stash.Remove(ctx, st.FileUrl); err != nil {
					zap.L().Warn("remove reclaimed file failed", zap.String("file_url", st.FileUrl), zap.Error(err))
				}
			}
		}
		if len(stale) < reclaimBatch {
			return total, nil
		}
	}
}
