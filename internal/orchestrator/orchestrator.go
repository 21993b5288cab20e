// Package orchestrator — ядро клиента: превращает пакет сброшенных
// файлов в отслеживаемую асинхронную задачу OCR и доводит ее до
// результатов. Состояние живет в одной горутине-цикле, события
// сериализуются через канал, сетевые завершения возвращаются в цикл
// событиями.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"ocrup/internal/client"
	"ocrup/internal/config"
	"ocrup/internal/intake"
	"ocrup/internal/model"
	"ocrup/internal/registry"
)

// Backend — четыре операции бэкенда OCR.
type Backend interface {
	GetToken(ctx context.Context) (client.TokenResponse, error)
	Submit(ctx context.Context, token string, files []model.StagedFile) (client.SubmitResponse, error)
	Status(ctx context.Context, taskUID string) (client.StatusResponse, error)
	Results(ctx context.Context, taskUID string) (model.ResultSet, error)
}

// Notifier получает блокирующие пользовательские уведомления
// (аналог alert), по одному на событие.
type Notifier interface {
	Alert(msg string)
}

type NotifierFunc func(msg string)

func (f NotifierFunc) Alert(msg string) { f(msg) }

const eventQueueSize = 64

type Orchestrator struct {
	cfg      config.Client
	backend  Backend
	intake   *intake.Intake
	reg      *registry.Registry
	notifier Notifier

	events  chan event
	done    chan struct{} // закрывается при выходе цикла
	settled chan struct{} // сигнал терминального исхода попытки отправки

	mu           sync.Mutex
	state        State
	pollInFlight bool   // не больше одного незавершенного опроса статуса
	resultsUID   string // uid, чей фетч результатов допущен к применению
}

func New(cfg config.Client, backend Backend, in *intake.Intake, reg *registry.Registry, notifier Notifier) *Orchestrator {
	if notifier == nil {
		notifier = NotifierFunc(func(msg string) {
			slog.Warn("alert", "message", msg)
		})
	}
	return &Orchestrator{
		cfg:      cfg,
		backend:  backend,
		intake:   in,
		reg:      reg,
		notifier: notifier,
		events:   make(chan event, eventQueueSize),
		done:     make(chan struct{}),
		settled:  make(chan struct{}, 1),
	}
}

// Run крутит цикл событий до отмены контекста. При старте выполняется
// ровно один асинхронный запрос токена; провал оставляет credential
// пустым, повторов нет. На выходе превью всех застейдженных файлов
// отзываются, тикер останавливается детерминированно.
func (o *Orchestrator) Run(ctx context.Context) {
	defer close(o.done)

	go func() {
		tctx, cancel := context.WithTimeout(ctx, o.cfg.RequestTimeout)
		defer cancel()

		resp, err := o.backend.GetToken(tctx)
		if err != nil {
			o.post(tokenFailed{err})
			return
		}
		o.post(tokenFetched{resp.Token})
	}()

	ticker := time.NewTicker(o.cfg.PollPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			o.teardown()
			return
		case <-ticker.C:
			o.reduce(ctx, tick{})
		case ev := <-o.events:
			o.reduce(ctx, ev)
		}
	}
}

// Drop принимает пакет путей (drag/drop или file-picker). Инспекция
// файлов выполняется здесь, применение вердиктов — в цикле, уже против
// актуального состояния.
func (o *Orchestrator) Drop(ctx context.Context, paths []string) error {
	if len(paths) == 0 {
		return nil
	}
	cands, err := o.intake.Inspect(ctx, paths)
	if err != nil {
		return err
	}
	o.post(dropRequest{cands})
	return nil
}

// Remove убирает первый застейдженный файл с данным именем.
func (o *Orchestrator) Remove(name string) {
	o.post(removeRequest{name})
}

// Submit запускает отправку пакета. Результат придет событием.
func (o *Orchestrator) Submit() {
	o.post(submitRequest{})
}

// Snapshot возвращает клон текущего состояния.
func (o *Orchestrator) Snapshot() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state.Clone()
}

// Done закрывается при выходе цикла событий.
func (o *Orchestrator) Done() <-chan struct{} {
	return o.done
}

// Settled сигналит, когда попытка отправки пришла к терминальному
// исходу: локальный отказ, провал отправки, либо задача завершена и
// результаты обработаны.
func (o *Orchestrator) Settled() <-chan struct{} {
	return o.settled
}

func (o *Orchestrator) post(ev event) {
	select {
	case o.events <- ev:
	case <-o.done:
		// цикл остановлен, событие игнорируется
	}
}

func (o *Orchestrator) teardown() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.reg.ReleaseAll(o.state.Files)
	o.state.Files = nil
}

func (o *Orchestrator) reduce(ctx context.Context, ev event) {
	o.mu.Lock()
	defer o.mu.Unlock()

	switch ev := ev.(type) {
	case tokenFetched:
		o.state.Credential = ev.token
		slog.Debug("credential acquired")
	case tokenFailed:
		slog.Error("token acquisition failed", "error", ev.err)
	case dropRequest:
		o.applyDrop(ev.cands)
	case removeRequest:
		o.applyRemove(ev.name)
	case submitRequest:
		o.startSubmit(ctx)
	case submitDone:
		o.applySubmitDone(ev)
	case tick:
		o.startPoll(ctx)
	case statusDone:
		o.applyStatus(ctx, ev)
	case resultsDone:
		o.applyResults(ev)
	}
}

func (o *Orchestrator) applyDrop(cands []intake.Candidate) {
	accepted, report := o.intake.Plan(len(o.state.Files), cands)

	// Отчет перезаписывается целиком, и только на drop-событии
	// с отказами; алерт один на событие
	if !report.Empty() {
		o.state.Rejected = report
		o.notifier.Alert(rejectionAlert(report))
	}

	staged, err := o.intake.Stage(accepted)
	if err != nil {
		slog.Error("staging failed", "error", err)
	}
	if len(staged) > 0 {
		o.replaceFiles(append(slices.Clone(o.state.Files), staged...))
	}
}

func (o *Orchestrator) applyRemove(name string) {
	i := slices.IndexFunc(o.state.Files, func(f model.StagedFile) bool {
		return f.Name == name
	})
	if i == -1 {
		slog.Debug("remove: file not staged", "name", name)
		return
	}
	o.replaceFiles(slices.Delete(slices.Clone(o.state.Files), i, i+1))
}

// replaceFiles заменяет набор файлов и пакетно отзывает превью
// выбывших. Хэндлы, на которые новый набор еще ссылается, не
// отзываются (освобождение строго один раз и никогда под ссылкой).
func (o *Orchestrator) replaceFiles(next []model.StagedFile) {
	prev := o.state.Files
	o.state.Files = next

	kept := make(map[string]bool, len(next))
	for _, f := range next {
		kept[f.Preview] = true
	}

	var removed []model.StagedFile
	for _, f := range prev {
		if !kept[f.Preview] {
			removed = append(removed, f)
		}
	}
	if len(removed) > 0 {
		o.reg.ReleaseAll(removed)
	}
}

func (o *Orchestrator) startSubmit(ctx context.Context) {
	st := &o.state

	if st.Credential == "" {
		slog.Info("submit refused", "reason", model.ErrNoCredential)
		o.notifier.Alert("No session token available. Upload is disabled.")
		o.signalSettled()
		return
	}
	if len(st.Files) == 0 {
		slog.Info("submit refused", "reason", model.ErrNoStagedFiles)
		o.notifier.Alert("No files staged for conversion.")
		o.signalSettled()
		return
	}
	if st.IsUploading {
		slog.Warn("submit ignored: upload already in flight")
		return
	}

	st.IsUploading = true
	token := st.Credential
	files := slices.Clone(st.Files)

	go func() {
		var (
			resp client.SubmitResponse
			err  error
		)
		// submitDone публикуется из defer: isUploading снимается
		// даже если путь отправки паникует
		defer func() {
			if p := recover(); p != nil {
				err = fmt.Errorf("submit panic: %v", p)
			}
			o.post(submitDone{uid: resp.TaskUID, err: err})
		}()

		sctx, cancel := context.WithTimeout(ctx, o.cfg.RequestTimeout)
		defer cancel()
		resp, err = o.backend.Submit(sctx, token, files)
	}()
}

func (o *Orchestrator) applySubmitDone(ev submitDone) {
	o.state.IsUploading = false // очистка в любом исходе

	if ev.err != nil || ev.uid == "" {
		slog.Error("submit failed", "error", ev.err)
		o.notifier.Alert("Upload failed. Try lowering the image resolution.")
		o.signalSettled()
		return
	}

	o.state.TaskUID = ev.uid
	o.state.IsProcessing = true
	o.state.Progress = 0
	slog.Info("batch submitted", "taskUID", ev.uid)
}

func (o *Orchestrator) startPoll(ctx context.Context) {
	st := &o.state

	if !st.IsProcessing || st.TaskUID == "" {
		return
	}
	if o.pollInFlight {
		// медленный опрос еще не вернулся, тик пропускается
		slog.Debug("status poll still in flight, tick skipped")
		return
	}

	o.pollInFlight = true
	uid := st.TaskUID

	go func() {
		pctx, cancel := context.WithTimeout(ctx, o.cfg.RequestTimeout)
		defer cancel()

		resp, err := o.backend.Status(pctx, uid)
		o.post(statusDone{uid: uid, resp: resp, err: err})
	}()
}

func (o *Orchestrator) applyStatus(ctx context.Context, ev statusDone) {
	o.pollInFlight = false

	// Провал опроса не трогает состояние, цикл продолжает тикать
	if ev.err != nil {
		slog.Error("status poll failed", "taskUID", ev.uid, "error", ev.err)
		return
	}

	st := &o.state
	if !st.IsProcessing || st.TaskUID != ev.uid {
		slog.Debug("stale status response ignored", "taskUID", ev.uid)
		return
	}

	st.Progress = ev.resp.Progress
	if ev.resp.Status != model.StatusCompleted {
		return
	}

	// Терминальный статус: опрос этой задачи прекращается, результаты
	// забираются ровно один раз
	st.IsProcessing = false
	st.TaskUID = ""
	o.resultsUID = ev.uid

	go func() {
		rctx, cancel := context.WithTimeout(ctx, o.cfg.RequestTimeout)
		defer cancel()

		results, err := o.backend.Results(rctx, ev.uid)
		o.post(resultsDone{uid: ev.uid, results: results, err: err})
	}()
}

func (o *Orchestrator) applyResults(ev resultsDone) {
	if ev.uid != o.resultsUID {
		slog.Debug("stale results response ignored", "taskUID", ev.uid)
		return
	}
	o.resultsUID = ""

	if ev.err != nil {
		// обработка уже завершена, прежние результаты остаются
		slog.Error("results fetch failed", "taskUID", ev.uid, "error", ev.err)
	} else {
		// полная замена, без слияния с прошлым фетчем
		o.state.Results = ev.results
	}

	o.signalSettled()
}

func (o *Orchestrator) signalSettled() {
	select {
	case o.settled <- struct{}{}:
	default:
	}
}

func rejectionAlert(r model.RejectionReport) string {
	var sb strings.Builder
	sb.WriteString("Some files were not accepted.")
	if len(r.InvalidType) > 0 {
		sb.WriteString("\nInvalid type:\n  " + strings.Join(r.InvalidType, "\n  "))
	}
	if len(r.TooLarge) > 0 {
		sb.WriteString("\nToo large:\n  " + strings.Join(r.TooLarge, "\n  "))
	}
	return sb.String()
}
