package story

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/url"
	"strconv"
	"time"

	"github.com/viant/stepflow/internal/clock"
	"github.com/viant/stepflow/model"
	"github.com/viant/stepflow/model/instance"
	"github.com/viant/stepflow/model/step"
	"github.com/viant/stepflow/service/blob"
	"github.com/viant/stepflow/service/subject"
	"github.com/viant/stepflow/service/subscription"
)

// Step names.
const (
	StepCollectOffices = "Collect offices to poll"
	StepStartOffices   = "Start per-office workflows"

	StepFetchPage       = "Fetch WX Story page content"
	StepParseStory      = "Parse story title, description, and image URL"
	StepLastModified    = "Fetch last-modified header for the primary story image"
	StepCompareImageURL = "Compare image URL with stored value and update if it changed"
	StepCompareModified = "Compare modified timestamp with stored value and update if it changed"
	StepGate            = "Check for changes"
	StepCacheImage      = "Cache modified images"
	StepAssemble        = "Assemble message data"
	StepCacheMessage    = "Cache message data"
	StepDestinations    = "Lookup office channels"
	StepSend            = "Send messages"

	StepResolveOffice = "Resolve office"
	StepSubscribe     = "Store subscription"
	StepUnsubscribe   = "Remove subscriptions"
)

// PollWorkflow starts one office instance per office with subscribers.
func (s *Service) PollWorkflow() *model.Workflow {
	workflow := model.NewWorkflow(KindPoll).
		WithStep(StepCollectOffices, s.collectOffices).
		WithStep(StepStartOffices, s.startOffices).
		WithValidator(func(params instance.Parameters) error {
			var p PollParams
			return params.Decode(&p)
		})
	workflow.Description = "poll every office with at least one subscription"
	return workflow
}

// OfficeWorkflow detects a story change of one office and notifies its
// destinations.
func (s *Service) OfficeWorkflow() *model.Workflow {
	workflow := model.NewWorkflow(KindOffice).
		WithStep(StepFetchPage, s.fetchPage).
		WithStep(StepParseStory, s.parseStory).
		WithStep(StepLastModified, s.lastModified).
		WithStep(StepCompareImageURL, s.compareImageURL).
		WithStep(StepCompareModified, s.compareModified).
		WithStep(StepGate, s.gate).
		WithStep(StepCacheImage, s.cacheImage).
		WithStep(StepAssemble, s.assemble).
		WithStep(StepCacheMessage, s.cacheMessage).
		WithStep(StepDestinations, s.destinations).
		WithStep(StepSend, s.send).
		WithValidator(validateOffice)
	workflow.Description = "publish the weather story of one office when it changed"
	return workflow
}

// SubscribeWorkflow subscribes a channel to an office.
func (s *Service) SubscribeWorkflow() *model.Workflow {
	return model.NewWorkflow(KindSubscribe).
		WithStep(StepResolveOffice, s.resolveOffice).
		WithStep(StepSubscribe, s.subscribe).
		WithValidator(func(params instance.Parameters) error {
			var p SubscribeParams
			if err := params.Decode(&p); err != nil {
				return err
			}
			if len(p.Office) != 3 || p.Channel == "" || p.Destination == "" {
				return fmt.Errorf("office, channel and destination are required")
			}
			return nil
		})
}

// UnsubscribeWorkflow removes a channel from one office or from all of them.
func (s *Service) UnsubscribeWorkflow() *model.Workflow {
	return model.NewWorkflow(KindUnsubscribe).
		WithStep(StepResolveOffice, s.resolveOffice).
		WithStep(StepUnsubscribe, s.unsubscribe).
		WithValidator(func(params instance.Parameters) error {
			var p UnsubscribeParams
			if err := params.Decode(&p); err != nil {
				return err
			}
			if p.Channel == "" {
				return fmt.Errorf("channel is required")
			}
			return nil
		})
}

func validateOffice(params instance.Parameters) error {
	var p OfficeParams
	if err := params.Decode(&p); err != nil {
		return err
	}
	if len(p.Office) != 3 {
		return fmt.Errorf("office call sign %q must have 3 letters", p.Office)
	}
	if p.OfficeID <= 0 {
		return fmt.Errorf("officeId must be positive, got %d", p.OfficeID)
	}
	return nil
}

func (s *Service) collectOffices(ctx context.Context, flow *step.Flow) (interface{}, error) {
	offices, err := s.subscriptions.ActiveOffices(ctx)
	if err != nil {
		return nil, err
	}
	log.Printf("story: %d office(s) to poll", len(offices))
	if len(offices) == 0 {
		return nil, step.Stop(offices)
	}
	return offices, nil
}

func (s *Service) startOffices(ctx context.Context, flow *step.Flow) (interface{}, error) {
	var params PollParams
	if err := flow.Params(&params); err != nil {
		return nil, step.Permanent(err)
	}
	var offices []subscription.Office
	if err := flow.Result(StepCollectOffices, &offices); err != nil {
		return nil, err
	}
	batch := make([]instance.Parameters, 0, len(offices))
	for _, office := range offices {
		batch = append(batch, flow.Parameters().Merge(instance.Parameters{
			"dev":      params.Dev,
			"office":   office.CallSign,
			"officeId": office.ID,
		}))
	}
	return s.dispatcher.CreateBatch(ctx, KindOffice, batch), nil
}

func (s *Service) officeParams(flow *step.Flow) (*OfficeParams, error) {
	params := &OfficeParams{}
	if err := flow.Params(params); err != nil {
		return nil, step.Permanent(err)
	}
	return params, nil
}

func (s *Service) fetchPage(ctx context.Context, flow *step.Flow) (interface{}, error) {
	params, err := s.officeParams(flow)
	if err != nil {
		return nil, err
	}
	page, err := s.client.Get(ctx, s.config.PageURL(params.Office))
	if err != nil {
		return nil, err
	}
	return string(page), nil
}

func (s *Service) parseStory(ctx context.Context, flow *step.Flow) (interface{}, error) {
	params, err := s.officeParams(flow)
	if err != nil {
		return nil, err
	}
	var page string
	if err := flow.Result(StepFetchPage, &page); err != nil {
		return nil, err
	}
	return Extract([]byte(page), s.config.PageURL(params.Office))
}

func (s *Service) story(flow *step.Flow) (*Story, error) {
	aStory := &Story{}
	if err := flow.Result(StepParseStory, aStory); err != nil {
		return nil, err
	}
	return aStory, nil
}

func (s *Service) lastModified(ctx context.Context, flow *step.Flow) (interface{}, error) {
	aStory, err := s.story(flow)
	if err != nil {
		return nil, err
	}
	modified, err := s.client.LastModified(ctx, aStory.ImageURL)
	if err != nil {
		return nil, err
	}
	return modified.Format(time.RFC3339), nil
}

func (s *Service) modified(flow *step.Flow) (string, error) {
	var modified string
	err := flow.Result(StepLastModified, &modified)
	return modified, err
}

func (s *Service) compareImageURL(ctx context.Context, flow *step.Flow) (interface{}, error) {
	params, err := s.officeParams(flow)
	if err != nil {
		return nil, err
	}
	aStory, err := s.story(flow)
	if err != nil {
		return nil, err
	}
	return s.detector.CheckAndUpdate(ctx, subject.Key(params.Office, "imageurl"), aStory.ImageURL, false)
}

func (s *Service) compareModified(ctx context.Context, flow *step.Flow) (interface{}, error) {
	params, err := s.officeParams(flow)
	if err != nil {
		return nil, err
	}
	modified, err := s.modified(flow)
	if err != nil {
		return nil, err
	}
	return s.detector.CheckAndUpdate(ctx, subject.Key(params.Office, "modified"), modified, false)
}

func (s *Service) gate(ctx context.Context, flow *step.Flow) (interface{}, error) {
	params, err := s.officeParams(flow)
	if err != nil {
		return nil, err
	}
	var urlChanged, modified bool
	if err := flow.Result(StepCompareImageURL, &urlChanged); err != nil {
		return nil, err
	}
	if err := flow.Result(StepCompareModified, &modified); err != nil {
		return nil, err
	}
	if !subject.AnyChanged(params.Dev, urlChanged, modified) {
		log.Printf("story: office %s unchanged", params.Office)
		return nil, step.Stop(false)
	}
	return true, nil
}

func (s *Service) cacheImage(ctx context.Context, flow *step.Flow) (interface{}, error) {
	params, err := s.officeParams(flow)
	if err != nil {
		return nil, err
	}
	aStory, err := s.story(flow)
	if err != nil {
		return nil, err
	}
	value, err := s.modified(flow)
	if err != nil {
		return nil, err
	}
	modified, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return nil, step.Permanent(err)
	}
	content, err := s.client.Open(ctx, aStory.ImageURL)
	if err != nil {
		return nil, err
	}
	defer content.Close()
	object, err := s.blobs.Put(ctx, blob.Key(params.Office, modified, blob.Filename(aStory.ImageURL)), content)
	if err != nil {
		return nil, err
	}
	location := object.Location
	if params.Dev {
		location, err = withVersion(location, clock.Now())
		if err != nil {
			return nil, step.Permanent(err)
		}
	}
	return location, nil
}

// withVersion busts destination caches on dev runs.
func withVersion(location string, now time.Time) (string, error) {
	parsed, err := url.Parse(location)
	if err != nil {
		return "", err
	}
	query := parsed.Query()
	query.Set("v", strconv.FormatInt(now.UnixMilli(), 10))
	parsed.RawQuery = query.Encode()
	return parsed.String(), nil
}

func (s *Service) assemble(ctx context.Context, flow *step.Flow) (interface{}, error) {
	params, err := s.officeParams(flow)
	if err != nil {
		return nil, err
	}
	aStory, err := s.story(flow)
	if err != nil {
		return nil, err
	}
	modified, err := s.modified(flow)
	if err != nil {
		return nil, err
	}
	var location string
	if err := flow.Result(StepCacheImage, &location); err != nil {
		return nil, err
	}
	return s.message(params.Office, aStory, modified, location), nil
}

func (s *Service) assembled(flow *step.Flow) (*Message, error) {
	message := &Message{}
	if err := flow.Result(StepAssemble, message); err != nil {
		return nil, err
	}
	return message, nil
}

func (s *Service) cacheMessage(ctx context.Context, flow *step.Flow) (interface{}, error) {
	params, err := s.officeParams(flow)
	if err != nil {
		return nil, err
	}
	message, err := s.assembled(flow)
	if err != nil {
		return nil, err
	}
	data, err := json.Marshal(message)
	if err != nil {
		return nil, step.Permanent(err)
	}
	return nil, s.detector.Put(ctx, subject.Key(params.Office, "message"), string(data))
}

func (s *Service) destinations(ctx context.Context, flow *step.Flow) (interface{}, error) {
	params, err := s.officeParams(flow)
	if err != nil {
		return nil, err
	}
	destinations, err := s.subscriptions.Destinations(ctx, params.OfficeID, params.Dev)
	if err != nil {
		return nil, err
	}
	if destinations == nil {
		destinations = []string{}
	}
	return destinations, nil
}

func (s *Service) send(ctx context.Context, flow *step.Flow) (interface{}, error) {
	message, err := s.assembled(flow)
	if err != nil {
		return nil, err
	}
	var destinations []string
	if err := flow.Result(StepDestinations, &destinations); err != nil {
		return nil, err
	}
	return s.notifier.Deliver(ctx, message, destinations), nil
}

func (s *Service) resolveOffice(ctx context.Context, flow *step.Flow) (interface{}, error) {
	var params struct {
		Office string `json:"office"`
	}
	if err := flow.Params(&params); err != nil {
		return nil, step.Permanent(err)
	}
	if params.Office == "" {
		return nil, nil
	}
	return s.subscriptions.Office(ctx, params.Office)
}

func (s *Service) office(flow *step.Flow) (*subscription.Office, error) {
	var office *subscription.Office
	if err := flow.Result(StepResolveOffice, &office); err != nil {
		return nil, err
	}
	return office, nil
}

func (s *Service) subscribe(ctx context.Context, flow *step.Flow) (interface{}, error) {
	var params SubscribeParams
	if err := flow.Params(&params); err != nil {
		return nil, step.Permanent(err)
	}
	office, err := s.office(flow)
	if err != nil {
		return nil, err
	}
	if office == nil {
		return nil, step.Permanent(fmt.Errorf("office %q was not resolved", params.Office))
	}
	aSubscription := &subscription.Subscription{
		OfficeID:    office.ID,
		Guild:       params.Guild,
		Channel:     params.Channel,
		Destination: params.Destination,
		Dev:         params.Dev,
	}
	if err := s.subscriptions.Subscribe(ctx, aSubscription); err != nil {
		return nil, err
	}
	log.Printf("story: channel %s subscribed to %s", params.Channel, office.CallSign)
	return aSubscription, nil
}

// Unsubscribed is the result of an unsubscribe instance.
type Unsubscribed struct {
	Scope   subscription.Scope `json:"scope"`
	Removed int64              `json:"removed"`
}

func (s *Service) unsubscribe(ctx context.Context, flow *step.Flow) (interface{}, error) {
	var params UnsubscribeParams
	if err := flow.Params(&params); err != nil {
		return nil, step.Permanent(err)
	}
	office, err := s.office(flow)
	if err != nil {
		return nil, err
	}
	ret := &Unsubscribed{Scope: subscription.ByChannel}
	officeID := 0
	if office != nil {
		ret.Scope = subscription.ByOfficeChannel
		officeID = office.ID
	}
	if ret.Removed, err = s.subscriptions.Unsubscribe(ctx, ret.Scope, params.Channel, officeID); err != nil {
		return nil, err
	}
	log.Printf("story: channel %s unsubscribed (%s), %d removed", params.Channel, ret.Scope, ret.Removed)
	return ret, nil
}
